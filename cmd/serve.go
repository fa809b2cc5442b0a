package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/ingest"
	"github.com/limpurb/fiscal-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for uploads, reconciliation and scoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(st, ingest.New(st, cfg.Ingest.SheetIndex), server.Options{
			UploadMaxBytes:    int64(cfg.Server.UploadMaxMB) << 20,
			UploadPerMinute:   cfg.Server.UploadPerMinute,
			ScheduledServices: scheduledSet(),
			ToleranceDays:     cfg.Reconcile.ToleranceDays,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// scheduledSet turns the configured service-code list into the lookup
// set the reconciliation engine expects. Nil keeps the default.
func scheduledSet() map[string]bool {
	if len(cfg.Reconcile.ScheduledServices) == 0 {
		return nil
	}
	set := make(map[string]bool, len(cfg.Reconcile.ScheduledServices))
	for _, code := range cfg.Reconcile.ScheduledServices {
		set[code] = true
	}
	return set
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
