/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commute reimbursement engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read environment config, then command-line flags (flags win)
  2. Initialize SQLite store
  3. Build the engine service and API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  Environment (COMMUTE_ prefix):
    COMMUTE_PORT     HTTP server port (default: 8080)
    COMMUTE_DB_PATH  SQLite database path (default: commute.db)

  Flags override the environment:
    -port    HTTP server port
    -db      SQLite database path; ":memory:" for in-memory

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/commute.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  COMMUTE_PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/warp/commute-engine/api"
	"github.com/warp/commute-engine/engine"
	"github.com/warp/commute-engine/store/sqlite"
)

type serverConfig struct {
	Port   int    `default:"8080"`
	DBPath string `split_words:"true" default:"commute.db"`
}

func main() {
	var cfg serverConfig
	if err := envconfig.Process("commute", &cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	// Flags override environment values.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build service and handler
	svc := engine.NewService(store)
	handler := api.NewHandler(svc)

	// Warn on unusual rate configuration at startup.
	if ecfg, err := svc.Config(context.Background()); err == nil {
		for _, warning := range ecfg.Warnings() {
			log.Printf("Config warning: %s", warning)
		}
	}

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚲 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
