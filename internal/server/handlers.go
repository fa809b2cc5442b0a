package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/indicator"
	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/reconcile"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "upload rate exceeded")
		return
	}

	ft, ok := model.ParseFileType(chi.URLParam(r, "tipo"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown file type")
		return
	}

	data, err := s.readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	summary, err := s.ingest.Bytes(r.Context(), data, ft)
	if err != nil {
		zap.L().Warn("upload rejected", zap.String("file_type", string(ft)), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// scopeFromQuery builds the reconciliation scope from the query
// string: todos=true selects everything, inicio/fim select a period,
// nothing selects the previous day.
func (s *Server) scopeFromQuery(r *http.Request) (reconcile.Scope, bool) {
	q := r.URL.Query()
	today := s.opts.now()

	if q.Get("todos") == "true" {
		return reconcile.Scope{Kind: reconcile.ScopeAll, Today: today}, true
	}

	inicio, fim := q.Get("inicio"), q.Get("fim")
	if inicio == "" && fim == "" {
		return reconcile.Scope{Kind: reconcile.ScopePreviousDay, Today: today}, true
	}

	start, okStart := workbook.ParseDate(inicio)
	end, okEnd := workbook.ParseDate(fim)
	if !okStart || !okEnd || end.Before(start) {
		return reconcile.Scope{}, false
	}
	return reconcile.Scope{Kind: reconcile.ScopePeriod, Start: start, End: end, Today: today}, true
}

func (s *Server) aggregate(r *http.Request, scope reconcile.Scope) (*reconcile.Result, error) {
	ctx := r.Context()
	selimp, err := s.store.ListRows(ctx, model.FileTypeSELIMP)
	if err != nil {
		return nil, err
	}
	internal, err := s.store.ListRows(ctx, model.FileTypeInternal)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.ListSchedule(ctx)
	if err != nil {
		return nil, err
	}

	return reconcile.Aggregate(
		reconcile.Input{Selimp: selimp, Internal: internal, Schedule: schedule},
		reconcile.Options{
			Scope:                 scope,
			ScheduledServices:     s.opts.ScheduledServices,
			CrossRefToleranceDays: s.opts.ToleranceDays,
		},
	), nil
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid inicio/fim range")
		return
	}

	result, err := s.aggregate(r, scope)
	if err != nil {
		zap.L().Error("reconcile query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// scoreResponse wraps the composed score with the period and the
// execution percentage that fed it.
type scoreResponse struct {
	PeriodStart      string             `json:"period_start"`
	PeriodEnd        string             `json:"period_end"`
	ExecutionPercent float64            `json:"execution_percent"`
	ExecutionSource  string             `json:"execution_source"`
	Counts           model.PeriodCounts `json:"counts"`
	Score            indicator.Score    `json:"score"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, okStart := workbook.ParseDate(q.Get("inicio"))
	end, okEnd := workbook.ParseDate(q.Get("fim"))
	if !okStart || !okEnd || end.Before(start) {
		writeError(w, http.StatusBadRequest, "invalid inicio/fim range")
		return
	}

	counts, err := s.store.CountPeriod(r.Context(), start, end)
	if err != nil {
		zap.L().Error("period counts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "counting failed")
		return
	}

	execution, source, err := s.executionPercent(r, start, end)
	if err != nil {
		zap.L().Error("execution percent failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "execution lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, scoreResponse{
		PeriodStart:      start.Format("2006-01-02"),
		PeriodEnd:        end.Format("2006-01-02"),
		ExecutionPercent: execution,
		ExecutionSource:  source,
		Counts:           counts,
		Score:            indicator.Compose(execution, counts),
	})
}

// executionPercent resolves the plan execution percentage for a
// scoring period: the explicit override wins, then the saved value,
// then a fresh reconciliation over the period.
func (s *Server) executionPercent(r *http.Request, start, end time.Time) (float64, string, error) {
	if cell := r.URL.Query().Get("execucao"); cell != "" {
		if pct, ok := workbook.ParsePercent(cell); ok {
			return pct, "override", nil
		}
	}

	saved, err := s.store.GetPlanExecution(r.Context(), start, end)
	if err != nil {
		return 0, "", err
	}
	if saved != nil {
		return *saved, "saved", nil
	}

	result, err := s.aggregate(r, reconcile.Scope{
		Kind: reconcile.ScopePeriod, Start: start, End: end, Today: s.opts.now(),
	})
	if err != nil {
		return 0, "", err
	}
	if pct := result.OverallSelimpPercent(); pct != nil {
		return *pct, "computed", nil
	}
	return 0, "computed", nil
}

func (s *Server) handleSaveExecution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Inicio     string  `json:"inicio"`
		Fim        string  `json:"fim"`
		Percentual float64 `json:"percentual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, okStart := workbook.ParseDate(req.Inicio)
	end, okEnd := workbook.ParseDate(req.Fim)
	if !okStart || !okEnd || end.Before(start) {
		writeError(w, http.StatusBadRequest, "invalid inicio/fim range")
		return
	}
	if req.Percentual < 0 || req.Percentual > 100 {
		writeError(w, http.StatusBadRequest, "percentual must be within [0, 100]")
		return
	}

	if err := s.store.SavePlanExecution(r.Context(), start, end, req.Percentual); err != nil {
		zap.L().Error("save execution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
