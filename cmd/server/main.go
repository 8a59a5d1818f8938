/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the sales engine. Builds the store, service and
  HTTP router from configuration and runs either the server or an offline
  maintenance command.

COMMANDS:
  serve      Start the HTTP API with graceful shutdown
  reconcile  Recompute an agent's plan total from its reports and show the diff

CONFIGURATION:
  --config points at an optional YAML file. Every key can be overridden
  with a SALES_ environment variable (server.port -> SALES_SERVER_PORT).
  See config/config.go for keys and defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Stop the drift monitor
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  sales-engine serve --config ./sales.yaml

  # Pure-Go driver, in-memory database
  SALES_STORAGE_DRIVER=sqlite SALES_STORAGE_DSN=:memory: sales-engine serve

  # Preview and then apply a plan correction
  sales-engine reconcile --agent aziza
  sales-engine reconcile --agent aziza --apply

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gigo/sales-engine/api"
	"github.com/gigo/sales-engine/config"
	"github.com/gigo/sales-engine/factory"
	"github.com/gigo/sales-engine/rewards"
	"github.com/gigo/sales-engine/sales"
	"github.com/gigo/sales-engine/sales/store"
	"github.com/gigo/sales-engine/store/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sales-engine",
	Short:         "Sales report approval and plan tracking",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newReconcileCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// app is everything a command needs, built from config.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	backend api.Backend
	service *sales.Service
	plans   *factory.PlanFactory
	close   func() error
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, close: func() error { return nil }}

	switch cfg.Storage.Driver {
	case "memory":
		a.backend = store.NewTxMemory()
	default:
		db, err := sqlite.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.backend = db
		a.close = db.Close
	}

	ladder := rewards.DefaultLadder()
	if cfg.Rewards.TiersFile != "" {
		if ladder, err = rewards.LoadLadder(cfg.Rewards.TiersFile); err != nil {
			a.close()
			return nil, err
		}
	}

	svc := sales.NewService(a.backend)
	svc.Categories = cfg.Engine.CategoryList()
	svc.Strategy = sales.Strategy(cfg.Engine.Strategy)
	svc.Ladder = ladder
	svc.DefaultDistribution = cfg.Engine.Distribution()
	a.service = svc

	a.plans = &factory.PlanFactory{
		Distribution:     cfg.Engine.Distribution(),
		DebtLimitPercent: cfg.Engine.DebtLimit(),
	}
	return a, nil
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, os.Stderr)
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	handler := api.NewHandler(a.service, a.backend, a.plans)

	monitor := api.NewDriftMonitor(a.service, a.logger)
	monitor.CheckInterval = a.cfg.Engine.DriftCheckInterval
	monitor.AutoFix = a.cfg.Engine.DriftAutoFix
	handler.Drift = monitor
	monitor.Start()
	defer monitor.Stop()
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:      a.logger,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.cfg.Server.Port).
			Str("driver", a.cfg.Storage.Driver).
			Str("strategy", a.cfg.Engine.Strategy).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info().Msg("server stopped")
	return nil
}
