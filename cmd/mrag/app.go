package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/db"
	"github.com/xxxsen/mrag/internal/embedcache"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/job"
	"github.com/xxxsen/mrag/internal/repo"
	"github.com/xxxsen/mrag/internal/schedule"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

type app struct {
	db        *sql.DB
	embedder  *ai.EmbeddingClient
	cacheRepo *repo.EmbeddingCacheRepo
	ingest    *service.IngestService
	search    *service.SearchService
	answers   *service.AnswerService
	summaries *service.SummaryService
	index     *service.IndexService
	cacheInDB bool
	scheduler *schedule.CronScheduler
}

func newApp(cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	a, err := buildApp(cfg, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

func buildApp(cfg *config.Config, conn *sql.DB) (*app, error) {
	providers := make(map[string]ai.IProvider, len(cfg.AI.Providers))
	for _, p := range cfg.AI.Providers {
		provider, err := ai.NewProvider(p.Type, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", p.Name, err)
		}
		providers[p.Name] = provider
	}

	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	indexRepo := repo.NewIndexRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	var embedder ai.IEmbedder = ai.NewEmbedder(providers[cfg.AI.Embedder.Provider], cfg.AI.Embedder.Model)
	embedder = ai.WrapRateLimit(embedder, cfg.AI.EmbedRateLimit.RPS, cfg.AI.EmbedRateLimit.Burst)
	if cfg.AI.EmbedCache.DB {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCache.LRUSize, time.Duration(cfg.AI.EmbedCache.LRUTTLSeconds)*time.Second)

	retry := ai.RetryConfig{
		MaxAttempts: cfg.AI.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.AI.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.AI.Retry.MaxDelayMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.AI.Retry.TimeoutSeconds) * time.Second,
	}
	embeddingClient := ai.NewEmbeddingClient(embedder, retry, cfg.AI.Dimension)

	manager := ai.NewManager(
		buildGenerator(providers, cfg.AI.Generators),
		buildGenerator(providers, cfg.AI.Summarizers),
		ai.ManagerConfig{
			MaxInputChars: cfg.AI.MaxInputChars,
			MaxTokens:     cfg.Synthesis.MaxTokens,
			Temperature:   cfg.Synthesis.Temperature,
			Retry:         retry,
		},
	)

	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	ingest, err := service.NewIngestService(docRepo, chunkRepo, embeddingClient, files, service.IngestConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: *cfg.Ingest.ChunkOverlap,
		Concurrency:  cfg.Ingest.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("init ingest service: %w", err)
	}

	index, err := vectorindex.New(cfg.Search.Backend, vectorindex.Sources{
		Nearest:   chunkRepo,
		Vectors:   chunkRepo,
		Documents: docRepo,
	})
	if err != nil {
		return nil, err
	}
	search := service.NewSearchService(embeddingClient, index, cfg.Search.DefaultTopK, cfg.Search.MaxTopK)
	answers := service.NewAnswerService(manager, search, service.AnswerConfig{
		MaxContextChars: cfg.Synthesis.MaxContextChars,
		CacheSize:       cfg.Synthesis.CacheSize,
		CacheTTL:        time.Duration(cfg.Synthesis.CacheTTLSeconds) * time.Second,
	})

	return &app{
		db:        conn,
		embedder:  embeddingClient,
		cacheRepo: cacheRepo,
		ingest:    ingest,
		search:    search,
		answers:   answers,
		summaries: service.NewSummaryService(docRepo, manager),
		index:     service.NewIndexService(indexRepo, cfg.Search.Backend),
		cacheInDB: cfg.AI.EmbedCache.DB,
	}, nil
}

// buildGenerator chains the referenced models into one fallback generator.
// It returns nil for an empty list.
func buildGenerator(providers map[string]ai.IProvider, refs []config.ModelRef) ai.IGenerator {
	entries := make([]ai.GeneratorEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, ai.GeneratorEntry{
			Name:      ref.Provider + ":" + ref.Model,
			Generator: ai.NewGenerator(providers[ref.Provider], ref.Model),
		})
	}
	return ai.NewGroupGenerator(entries)
}

func (a *app) startJobs(ctx context.Context, cfg config.JobsConfig) error {
	s := schedule.NewCronScheduler()
	if !cfg.DisableSummary {
		if err := s.AddJob(job.NewSummaryJob(a.summaries, cfg.SummaryBatch), cfg.SummaryCron); err != nil {
			return fmt.Errorf("schedule summary job: %w", err)
		}
	}
	if !cfg.DisableStaleRecovery {
		maxAge := time.Duration(cfg.StaleAfterMinutes) * time.Minute
		if err := s.AddJob(job.NewStaleProcessingJob(a.ingest, maxAge), cfg.StaleCron); err != nil {
			return fmt.Errorf("schedule stale processing job: %w", err)
		}
	}
	if a.cacheInDB {
		maxAge := time.Duration(cfg.CacheRetentionHours) * time.Hour
		if err := s.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, maxAge), cfg.CacheCleanupCron); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup job: %w", err)
		}
	}
	s.Start(ctx)
	a.scheduler = s
	logutil.GetLogger(ctx).Info("background jobs started", zap.Strings("jobs", s.Jobs()))
	return nil
}

func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if err := a.db.Close(); err != nil {
		logutil.GetLogger(context.Background()).Error("close db failed", zap.Error(err))
	}
}
