package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lildude/stravastats/internal/handlers/activities"
	"github.com/lildude/stravastats/internal/handlers/admin"
	"github.com/lildude/stravastats/internal/handlers/auth"
	"github.com/lildude/stravastats/internal/metrics"
	"github.com/lildude/stravastats/internal/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr            string        `short:"a" long:"addr" description:"listen address (defaults to :$PORT)"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" description:"time allowed for in-flight requests on shutdown" default:"15s"`
}

func (s *ServeCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	addr := s.Addr
	if addr == "" {
		addr = ":" + a.cfg.Port
	}

	imports := admin.NewHandler(ctx, a.importer, a.cfg.ImportDays, a.log)
	srv := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(server.Routes{
			OAuthCallback: auth.CallbackHandler(a.oauth, a.creds, a.cfg.UpstreamTimeout, a.log),
			Events:        a.processor,
			VerifyToken:   a.cfg.StravaVerifyToken,
			AdminToken:    a.cfg.AdminToken,
			Athletes:      a.creds,
			Activities:    activities.NewHandler(a.runs, a.log),
			Admin:         imports,
			Metrics:       metrics.Handler(a.registry),
		}, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.log.WithError(err).Error("server failed")
			return err
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Error("graceful shutdown failed")
	}
	// ctx is already cancelled, so running imports stop at their next call.
	imports.Wait()
	return nil
}
