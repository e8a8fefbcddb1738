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

	"farmadvisor-client/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd creates the 'serve' command that exposes the JSON API for a UI.
func newServeCmd(opts *globalOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the FarmAdvisor JSON API for a browser or desktop UI",
		Long: `Start an HTTP server exposing login, analysis, history, analytics,
charts and reports under /api/v1.

The server holds one farmer session. The stored login is restored on start,
so a restart does not require logging in again.`,
		Example: `  farmadvisor serve
  farmadvisor serve --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

// runServe starts the server and shuts down gracefully on SIGINT/SIGTERM.
func runServe(opts *globalOptions, port string) error {
	cfg := opts.loadConfig()
	if port != "" {
		cfg.Port = port
	}
	logger := logging.Must(cfg.Environment)
	defer logger.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting FarmAdvisor API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
