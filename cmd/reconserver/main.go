// Command reconserver is the reconciliation engine's process entrypoint:
// it loads configuration, opens the database, wires the matching/
// resolver/workflow/orchestrator stack, and serves the operator HTTP API
// until a termination signal asks it to shut down.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"reconciler/internal/api"
	"reconciler/internal/config"
	"reconciler/internal/feed"
	"reconciler/internal/logging"
	"reconciler/internal/matching"
	"reconciler/internal/models"
	"reconciler/internal/orchestrator"
	"reconciler/internal/reporting"
	"reconciler/internal/repository"
	"reconciler/internal/resolver"
	"reconciler/internal/workflow"
	"reconciler/pkg/clock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	store := repository.NewPostgresStore(db)
	runs := repository.NewRunRepository(db)
	breaks := repository.NewBreakRepository(db)
	trades := repository.NewTradeRepository(db)

	internalFeed, err := feed.New(feed.KindInternalQuery, feed.Config{DB: db, TableName: "internal_trade_blotter"})
	if err != nil {
		logger.Fatal("failed to build internal feed adapter", zap.Error(err))
	}

	externalFeeds, err := buildExternalFeeds(cfg.ExternalFeeds)
	if err != nil {
		logger.Fatal("failed to build external feed adapters", zap.Error(err))
	}

	engine := matching.NewEngine(cfg.Matching, nil)
	collaborator := workflow.NewMemoryCollaborator(nil, clock.Real{})

	orch := &orchestrator.Orchestrator{
		Store:             store,
		InternalFeed:      internalFeed,
		InternalSourceTag: string(models.SourceInternal),
		ExternalFeeds:     externalFeeds,
		Engine:            engine,
		Rules:             resolver.DefaultRules(),
		Aliases:           cfg.AliasTable,
		Collaborator:      collaborator,
		WorkerPoolSize:    cfg.Ingest.WorkerPoolSize,
		FeedTimeout:       time.Duration(cfg.Ingest.FeedTimeoutSeconds) * time.Second,
		Clock:             clock.Real{},
		Logger:            logger,
	}

	generator := reporting.NewGenerator(breaks, trades)

	deps := &api.Dependencies{
		Orchestrator: orch,
		Runs:         runs,
		Breaks:       breaks,
		Reports:      generator,
		Logger:       logger,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
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

	logger.Info("server exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

func buildExternalFeeds(cfgs []config.ExternalFeedConfig) (map[string]feed.Source, error) {
	feeds := make(map[string]feed.Source, len(cfgs))
	for _, c := range cfgs {
		src, err := feed.New(feed.Kind(c.Kind), feed.Config{
			FilePath:      c.FilePath,
			Delimiter:     c.Delimiter,
			ColumnMapping: c.ColumnMapping,
			Source:        models.Source(c.SourceTag),
		})
		if err != nil {
			return nil, fmt.Errorf("external feed %q: %w", c.SourceTag, err)
		}
		feeds[c.SourceTag] = src
	}
	return feeds, nil
}
