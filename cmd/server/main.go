/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the assistant assignment server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize structured logger (zap)
  3. Initialize SQLite store
  4. Wire notification dispatcher and assignment controller
  5. Configure HTTP router and start the timeout sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: assist.db)
                   Use ":memory:" for in-memory database
  -sweep-interval  How often the timeout sweeper runs (default: 1m)
  -deadline        Default response deadline for assignments (default: 2h)
  -dev             Use the human-readable development logger

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/salon.db"

  # Aggressive sweeping for demos
  ./server -sweep-interval=5s -deadline=1m

SEE ALSO:
  - api/server.go: Router configuration
  - api/sweeper.go: Timeout sweeper
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/salonhub/assist-engine/api"
	"github.com/salonhub/assist-engine/assign"
	"github.com/salonhub/assist-engine/notify"
	"github.com/salonhub/assist-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "assist.db", "SQLite database path")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "timeout sweep interval")
	deadline := flag.Duration("deadline", assign.DefaultResponseDeadline, "default response deadline")
	dev := flag.Bool("dev", false, "use the development logger")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Notification dispatcher: in-app rows always, email via log sender
	// until a real provider is wired in.
	dispatcher := notify.New(store, notify.LogSender{Logger: logger}, logger.Named("notify"))

	// Assignment controller
	ctrl := assign.NewController(store, store, store, dispatcher, logger.Named("assign"))
	ctrl.DefaultDeadline = *deadline

	// HTTP handler and sweeper
	handler := api.NewHandler(store, ctrl, logger.Named("api"))
	sweeper := api.NewTimeoutSweeper(store, ctrl, logger.Named("sweeper"))
	sweeper.CheckInterval = *sweepInterval
	handler.Sweeper = sweeper

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweeper.Start()

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.Duration("sweep_interval", *sweepInterval))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	sweeper.Stop()

	logger.Info("server stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
