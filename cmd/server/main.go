/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the approval workflow engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load YAML config if given
  2. Build the zap logger
  3. Initialize SQLite store (schema auto-migrates)
  4. Wire the engine: profiles, lifecycle manager, state machine, batch
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config file (optional; defaults apply without it)
  -port    HTTP server port override
  -db      SQLite database path override
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run with a config file and an in-memory database
  ./server -config=config.yaml -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration schema and defaults
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/approval-engine/api"
	"github.com/warp/approval-engine/config"
	"github.com/warp/approval-engine/generic"
	"github.com/warp/approval-engine/leave"
	"github.com/warp/approval-engine/logging"
	"github.com/warp/approval-engine/store/sqlite"
	"github.com/warp/approval-engine/timeslip"
	"github.com/warp/approval-engine/wfh"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// Configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Logger
	logger, err := logging.NewLogger(logging.Options{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Engine wiring
	directory := store.Directory(cfg.Approval.AdminRoles)
	dispatcher := &generic.LogDispatcher{Logger: logger}

	registry := generic.NewRegistry(
		leave.Profile(leave.Deps{
			Assignments: store,
			Directory:   directory,
			AdminRoles:  cfg.Approval.AdminRoles,
		}),
		wfh.Profile(wfh.Deps{
			Assignments: store,
			Directory:   directory,
			AdminRoles:  cfg.Approval.AdminRoles,
			Policies:    store,
		}),
		timeslip.Profile(timeslip.Deps{
			Workflows: store,
		}),
	)

	lifecycle := &generic.LifecycleManager{
		Store:      store,
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	machine := &generic.Machine{
		Store:      store,
		Registry:   registry,
		Directory:  directory,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	batch := &generic.BatchCoordinator{
		Machine: machine,
		Logger:  logger,
	}

	handler := api.NewHandler(store, lifecycle, machine, batch, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Addr()),
			zap.String("db", cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
