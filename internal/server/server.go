// Package server exposes the reconciliation engine over HTTP: workbook
// uploads, reconciliation queries and indicator scoring.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/limpurb/fiscal-cli/internal/ingest"
	"github.com/limpurb/fiscal-cli/internal/store"
)

// Options tunes the HTTP surface.
type Options struct {
	// UploadMaxBytes caps the accepted workbook size. Zero means 32 MiB.
	UploadMaxBytes int64
	// UploadPerMinute throttles the upload endpoint. Zero means 30.
	UploadPerMinute int
	// ScheduledServices overrides the reconciliation default when
	// non-nil.
	ScheduledServices map[string]bool
	// ToleranceDays bounds the cross-reference date inference.
	ToleranceDays int
	// Now supplies the current time; tests pin it.
	Now func() time.Time
}

func (o Options) maxBytes() int64 {
	if o.UploadMaxBytes > 0 {
		return o.UploadMaxBytes
	}
	return 32 << 20
}

func (o Options) perMinute() int {
	if o.UploadPerMinute > 0 {
		return o.UploadPerMinute
	}
	return 30
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Server holds the handler dependencies.
type Server struct {
	store   store.Store
	ingest  *ingest.Service
	opts    Options
	limiter *rate.Limiter
}

// New creates a Server.
func New(st store.Store, ing *ingest.Service, opts Options) *Server {
	perMin := opts.perMinute()
	return &Server{
		store:   st,
		ingest:  ing,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
	}
}

// Router builds the chi router with all routes configured.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload/{tipo}", s.handleUpload)
		r.Get("/reconcile", s.handleReconcile)
		r.Get("/score", s.handleScore)
		r.Post("/execucao", s.handleSaveExecution)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readUpload pulls the workbook out of a multipart request, falling
// back to the raw body for clients that post the file directly.
func (s *Server) readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.opts.maxBytes())

	file, _, err := r.FormFile("arquivo")
	if err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	if err != http.ErrMissingFile && err != http.ErrNotMultipart {
		return nil, err
	}
	return io.ReadAll(r.Body)
}
