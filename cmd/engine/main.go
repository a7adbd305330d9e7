// Sasya Arogya engine server — exposes the agricultural advisory
// workflow over HTTP with SSE streaming and session persistence.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sasya-arogya/engine/pkg/api"
	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/database"
	"github.com/sasya-arogya/engine/pkg/engine"
	"github.com/sasya-arogya/engine/pkg/engine/nodes"
	"github.com/sasya-arogya/engine/pkg/intent"
	"github.com/sasya-arogya/engine/pkg/llm"
	"github.com/sasya-arogya/engine/pkg/observability"
	"github.com/sasya-arogya/engine/pkg/session"
	"github.com/sasya-arogya/engine/pkg/stream"
	"github.com/sasya-arogya/engine/pkg/tools"
	"github.com/sasya-arogya/engine/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	cfg, err := config.Load(filepath.Join(*configDir, "engine.yaml"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Observability
	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer obs.Shutdown(context.Background())

	// 2. Session store: Postgres when DB_HOST is configured, memory
	// otherwise. The memory store is for dev setups; session state does
	// not survive restarts without a database.
	var store session.Store
	var dbClient *database.Client
	if os.Getenv("DB_HOST") != "" {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database configuration", "error", err)
			os.Exit(1)
		}
		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to initialize database client", "error", err)
			os.Exit(1)
		}
		defer dbClient.Close()
		store = session.NewPostgresStore(dbClient)
		slog.Info("Database initialized", "host", dbConfig.Host, "database", dbConfig.Database)
	} else {
		store = session.NewMemoryStore()
		slog.Warn("DB_HOST not set, using in-memory session store")
	}

	// 3. LLM client and tools
	llmClient := llm.NewClient(cfg.Ollama)
	deps := &nodes.Deps{
		Intent:       intent.NewAnalyzer(llmClient),
		LLM:          llmClient,
		Classifier:   tools.NewClassificationTool(cfg.Classifier, llmClient),
		Prescription: tools.NewPrescriptionTool(cfg.Prescription),
		Insurance:    tools.NewInsuranceTool(cfg.Insurance),
		Extractor:    tools.NewContextExtractor(),
		Overlay:      tools.NewAttentionOverlayTool(),
		Vendors:      tools.NewVendorTool(),
		Obs:          obs,
	}

	// 4. Engine and session manager
	eng := engine.New(deps)
	tracker := stream.NewTracker()
	sessions := session.NewManager(store, tracker, cfg.Session)
	sessions.StartCleanup(ctx)

	// 5. HTTP server
	server := api.NewServer(eng, sessions, tracker, dbClient)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Sasya Arogya engine started",
		"version", version.Full(),
		"port", cfg.Server.Port,
		"ollama_model", cfg.Ollama.Model)

	// 6. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 7. Graceful shutdown: let in-flight turns finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	cancel()

	slog.Info("Sasya Arogya engine stopped")
}
