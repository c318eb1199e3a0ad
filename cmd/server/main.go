/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the trainee progression & rewards server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment config, then apply command-line flag overrides
  2. Initialize SQLite store
  3. Build the level catalog (JSON file or built-in default)
  4. Create the engine, API handler, and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: progression.db)
            Use ":memory:" for in-memory database
  -catalog  JSON level-catalog file (default: built-in ladder)

ENVIRONMENT:
  SERVER_PORT, SERVER_REDEEM_RATE, SERVER_REDEEM_BURST,
  DB_PATH, APP_CATALOG, APP_WELCOME_BONUS, APP_ENVIRONMENT
  Flags take precedence over environment variables.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/progression.db"

  # Run with a custom ladder
  ./server -catalog="./ladder.json"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
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

	"github.com/warp/progression-engine/api"
	"github.com/warp/progression-engine/config"
	"github.com/warp/progression-engine/factory"
	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
	"github.com/warp/progression-engine/store/sqlite"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	catalogPath := flag.String("catalog", cfg.App.CatalogPath, "JSON level-catalog file (empty = built-in)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build the level catalog
	catalog := progression.DefaultCatalog()
	if *catalogPath != "" {
		catalog, err = factory.LoadCatalogFile(*catalogPath)
		if err != nil {
			log.Fatalf("Failed to load level catalog: %v", err)
		}
		log.Printf("Loaded level catalog from %s (%d levels)", *catalogPath, catalog.Len())
	}

	// Engine, handler, router
	engine := rewards.NewEngine(store, catalog)
	handler := api.NewHandler(engine, store, cfg.App.WelcomeBonus)
	router := api.NewRouter(handler, api.RouterOptions{
		RedeemRatePerSec: cfg.Server.RedeemRatePerSec,
		RedeemBurst:      cfg.Server.RedeemBurst,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
