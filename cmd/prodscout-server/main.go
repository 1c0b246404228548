// Package main provides the HTTP server that hosts the research pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/prodscout/internal/config"
	"github.com/raphaelgruber/prodscout/internal/db"
	"github.com/raphaelgruber/prodscout/internal/export"
	"github.com/raphaelgruber/prodscout/internal/llm"
	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/server"
	"github.com/raphaelgruber/prodscout/internal/service"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all records from the database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger, *wipeDB || os.Getenv("PRODSCOUT_WIPE_DB") == "true"); err != nil {
		logger.Error("server failed", "error", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, wipe bool) error {
	logger.Info("starting prodscout-server",
		"port", cfg.ServerPort,
		"store", cfg.Store,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel)

	store, closeStore, err := openStore(cfg, logger, wipe)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	gen, err := llm.New(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	mc := metrics.NewCollector()
	researcher := llm.NewResearcher(gen,
		llm.WithGrounding(cfg.SearchGrounding),
		llm.WithMetrics(mc),
		llm.WithLogger(logger),
	)
	pipeline := service.NewPipeline(store, researcher, export.NewCSVSheet(cfg.ExportPath, logger), service.PipelineOptions{
		IdentifyConcurrency: cfg.IdentifyConcurrency,
		Metrics:             mc,
		Logger:              logger,
	})

	httpServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     server.New(pipeline, logger).Handler(),
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: discover and identify block on the generator,
		// and the event stream sets its own write deadlines.
		IdleTimeout: 120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Active batches live in memory only; anything not committed is lost.
	if n := len(pipeline.Batches().List()); n > 0 {
		logger.Warn("discarding uncommitted batches", "count", n)
	}
	logger.Info("server stopped")
	return nil
}

// openStore connects the configured knowledge store. The returned func
// releases it.
func openStore(cfg config.Config, logger *slog.Logger, wipe bool) (service.KnowledgeStore, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory knowledge store; records are lost on restart")
		return service.NewMemoryStore(), func() {}, nil
	}
	if cfg.Store != config.StoreSurrealDB {
		return nil, nil, fmt.Errorf("unknown store %q (use %s or %s)", cfg.Store, config.StoreSurrealDB, config.StoreMemory)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect surrealdb: %w", err)
	}
	closeClient := func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}

	if err := client.InitSchema(ctx); err != nil {
		closeClient()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}
	if wipe {
		logger.Warn("wiping knowledge store")
		if err := client.WipeData(ctx); err != nil {
			closeClient()
			return nil, nil, fmt.Errorf("wipe database: %w", err)
		}
	}
	return db.NewProductStore(client), closeClient, nil
}
