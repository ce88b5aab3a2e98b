package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"testwise/internal/logging"
	"testwise/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI for uploading and analyzing test logs",
	Long: `Starts the HTTP server with the upload form, run view, and report
downloads. Uploaded logs are held in memory per session and discarded when
the session expires.

The listen address comes from the config file or TESTWISE_LISTEN.`,
	RunE: runServe,
}

var serveFlags struct {
	listen string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.New("serve")
	if serveFlags.listen != "" {
		cfg.Listen = serveFlags.listen
	}

	srv, err := web.NewServer(cfg, newCompleter())
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
