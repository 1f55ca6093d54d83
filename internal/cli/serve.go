package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vsporte/fhm-matches/internal/cache"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/server"
)

const shutdownTimeout = 10 * time.Second

var flagWarm bool

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached snapshot over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&flagWarm, "warm", false, "Refresh stale snapshots in the background")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	acc := cache.New(a.pipeline, a.store, cache.Options{
		TTL:      cfg.Cache.TTL,
		ErrorTTL: cfg.Cache.ErrorTTL,
	})

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := server.New(acc, server.Options{
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Location:       a.location,
	}).Router()
	if err != nil {
		return fmt.Errorf("configuring router: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if flagWarm {
		go acc.Warm(ctx, 0)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logger.Fields{"addr": cfg.HTTP.Addr, "snapshot": a.store.Path()})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		acc.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", nil)
	return shutdown(srv, acc)
}

// shutdown cancels pipeline runs first so requests waiting on them finish
// before srv drains.
func shutdown(srv *http.Server, acc *cache.Accessor) error {
	acc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
