// mnemod is the process entrypoint wiring configuration, logging, the
// selected storage backend, and the service facade together. It carries no
// transport code of its own: stdio and HTTP framing, request routing, and
// consolidation scheduling belong to whatever process embeds the facade,
// not to this binary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/chunking"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/config"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/embedding"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/quality"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/service"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage/cloudstore"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage/hybridstore"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage/localstore"
)

func main() {
	cfg, err := config.Load(os.Getenv("MNEMO_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	logger = logger.WithComponent("mnemod")

	backend, closer, err := buildBackend(cfg, logger)
	if err != nil {
		log.Fatalf("build backend: %v", err)
	}
	defer closer()

	scorer := quality.NewHeuristic()
	facade := service.New(backend, scorer, chunkPolicyFor(cfg), cfg.Memory.IncludeHostnameTag, logger)

	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if health, err := facade.Health(ctx); err != nil {
		logger.Error("startup health check failed", "error", err.Error())
	} else if !health.Success {
		logger.Warn("startup health check reported an unhealthy backend", "error", health.Error)
	} else {
		logger.Info("mnemod ready", "backend", string(cfg.StorageBackend), "memories", health.Stats.TotalMemories)
	}

	<-ctx.Done()
	logger.Info("mnemod shutting down")
}

// buildBackend wires the configured storage.Backend and returns a closer
// that releases its underlying connections.
func buildBackend(cfg *config.Config, logger logging.Logger) (storage.Backend, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLiteVec:
		local, err := openLocal(cfg)
		if err != nil {
			return nil, nil, err
		}
		return local, func() { _ = local.Close() }, nil

	case config.BackendCloud:
		cloud, err := openCloud(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return cloud, func() {}, nil

	case config.BackendHybrid:
		local, err := openLocal(cfg)
		if err != nil {
			return nil, nil, err
		}
		cloud, err := openCloud(cfg, logger)
		if err != nil {
			_ = local.Close()
			return nil, nil, err
		}
		hybridCfg := hybridstore.Config{
			MaxQueueSize:    cfg.Hybrid.MaxQueueSize,
			QueuePutTimeout: cfg.Hybrid.QueuePutTimeout,
			MaxEmptyBatches: cfg.Hybrid.MaxEmptyBatches,
			MinCheckCount:   cfg.Hybrid.MinCheckCount,
			RedisAddr:       cfg.Hybrid.RedisAddr,
			RedisCacheTTL:   cfg.Hybrid.RedisCacheTTL,
		}
		store := hybridstore.New(local, cloud, local, hybridCfg, logger)
		runCtx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := store.Run(runCtx); err != nil {
				logger.Error("hybrid sync worker stopped", "error", err.Error())
			}
		}()
		return store, func() { cancel(); _ = local.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openLocal(cfg *config.Config) (*localstore.Store, error) {
	embedder := embedding.NewDedup(embedding.NewLocalProvider(cfg.Memory.EmbeddingDim))
	return localstore.Open(localstore.Config{
		Path:           cfg.SQLite.Path,
		BusyMS:         cfg.SQLite.BusyMS,
		CacheKB:        cfg.SQLite.CacheKB,
		EmbeddingDim:   cfg.Memory.EmbeddingDim,
		EmbeddingModel: "local-hash-shingle",
	}, embedder)
}

func openCloud(cfg *config.Config, logger logging.Logger) (*cloudstore.Store, error) {
	var embedder embedding.Provider = embedding.NewRemoteProvider(
		cfg.Cloud.MetadataBaseURL, cfg.Cloud.BearerToken, cfg.Cloud.EmbeddingDim, cfg.Cloud.RequestTimeout,
	)
	if cfg.Hybrid.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Hybrid.RedisAddr})
		embedder = embedding.NewCachingProvider(embedder, client, cfg.Hybrid.RedisCacheTTL, "mnemo:embed:remote:")
	}

	return cloudstore.New(cloudstore.Config{
		Host:               cfg.Cloud.QdrantHost,
		Port:               cfg.Cloud.QdrantPort,
		APIKey:             cfg.Cloud.QdrantAPIKey,
		UseTLS:             cfg.Cloud.QdrantUseTLS,
		Collection:         cfg.Cloud.QdrantCollection,
		MetadataBaseURL:    cfg.Cloud.MetadataBaseURL,
		BlobBaseURL:        cfg.Cloud.BlobBaseURL,
		BearerToken:        cfg.Cloud.BearerToken,
		RequestTimeout:     cfg.Cloud.RequestTimeout,
		MaxAttempts:        cfg.Cloud.MaxAttempts,
		MaxContentLength:   cfg.Cloud.MaxContentLength,
		BlobThresholdBytes: cfg.Cloud.BlobThresholdSize,
		EmbeddingDim:       cfg.Cloud.EmbeddingDim,
		EmbeddingModel:     "remote-http",
		VectorLimit:        cfg.Cloud.VectorLimit,
	}, embedder, logger)
}

// chunkPolicyFor picks the active backend's content-length policy: the
// local-only backend is unbounded, cloud and hybrid are both constrained by
// the cloud leg's token limit.
func chunkPolicyFor(cfg *config.Config) chunking.Policy {
	if cfg.StorageBackend == config.BackendSQLiteVec {
		return chunking.Policy{MaxContentLength: 0, AutoSplit: cfg.Chunking.AutoSplitEnabled, OverlapChars: cfg.Chunking.OverlapChars}
	}
	return chunking.Policy{
		MaxContentLength: cfg.Cloud.MaxContentLength,
		AutoSplit:        cfg.Chunking.AutoSplitEnabled,
		OverlapChars:     cfg.Chunking.OverlapChars,
	}
}

func printBanner(cfg *config.Config) {
	bold := color.New(color.FgCyan, color.Bold)
	bold.Println("mnemod — semantic memory core")
	color.New(color.FgHiBlack).Printf("backend=%s started_at=%s\n", cfg.StorageBackend, time.Now().UTC().Format(time.RFC3339))
}
