// Package config loads and validates configuration for the memory service
// core from environment variables, an optional .env file, and an optional
// YAML overlay, layered over compiled-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend selects which storage backend the facade wires up.
type Backend string

const (
	BackendSQLiteVec Backend = "sqlite_vec"
	BackendCloud     Backend = "cloud"
	BackendHybrid    Backend = "hybrid"
)

// Config is the root configuration object. It is loaded once at startup and
// never mutated during a run.
type Config struct {
	StorageBackend Backend

	SQLite   SQLiteConfig
	Hybrid   HybridConfig
	Cloud    CloudConfig
	Chunking ChunkingConfig
	Memory   MemoryConfig

	Consolidation ConsolidationConfig

	LogLevel string
	LogJSON  bool
}

// SQLiteConfig configures the local vector store.
type SQLiteConfig struct {
	Path    string
	Pragmas string
	BusyMS  int
	CacheKB int
}

// HybridConfig configures the hybrid store / sync queue.
type HybridConfig struct {
	SyncIntervalSeconds int
	BatchSize           int
	MaxQueueSize        int
	MaxEmptyBatches     int
	MinCheckCount       int
	QueuePutTimeout     time.Duration
	RedisAddr           string
	RedisCacheTTL       time.Duration
}

// CloudConfig configures the remote cloud store.
type CloudConfig struct {
	QdrantHost        string
	QdrantPort        int
	QdrantAPIKey      string
	QdrantUseTLS      bool
	QdrantCollection  string
	MetadataBaseURL   string
	BlobBaseURL       string
	BearerToken       string
	RequestTimeout    time.Duration
	MaxAttempts       int
	MaxContentLength  int
	VectorLimit       int64
	BlobThresholdSize int
	EmbeddingDim      int
}

// ChunkingConfig configures the content-length auto-split policy.
type ChunkingConfig struct {
	AutoSplitEnabled bool
	OverlapChars     int
}

// MemoryConfig configures ambient memory-model behavior.
type MemoryConfig struct {
	IncludeHostnameTag bool
	EmbeddingDim       int
}

// ConsolidationConfig configures the dream-inspired pipeline scheduling.
type ConsolidationConfig struct {
	Enabled      bool
	DailyCron    string
	WeeklyCron   string
	MonthlyCron  string
	HalfLifeDays map[string]float64

	ClusterEps          float64
	ClusterMinSamples   int
	AssociationMinSim   float64
	AssociationMaxSim   float64
	MaxNewEdgesPerRun   int
	CompressionMinSize  int
	CompressionMaxChars int
	ForgetMinAgeDays    float64
	ForgetRelevanceMax  float64
}

// Default returns the compiled-in default configuration.
func Default() *Config {
	return &Config{
		StorageBackend: BackendHybrid,
		SQLite: SQLiteConfig{
			Path:    "./data/memory.db",
			Pragmas: "busy_timeout=15000,cache_size=20000",
			BusyMS:  15000,
			CacheKB: 20000,
		},
		Hybrid: HybridConfig{
			SyncIntervalSeconds: 300,
			BatchSize:           50,
			MaxQueueSize:        1000,
			MaxEmptyBatches:     20,
			MinCheckCount:       1000,
			QueuePutTimeout:     5 * time.Second,
			RedisAddr:           "localhost:6379",
			RedisCacheTTL:       15 * time.Minute,
		},
		Cloud: CloudConfig{
			QdrantHost:        "localhost",
			QdrantPort:        6334,
			QdrantCollection:  "mcp_memory",
			RequestTimeout:    10 * time.Second,
			MaxAttempts:       5,
			MaxContentLength:  800,
			VectorLimit:       1_000_000,
			BlobThresholdSize: 1024 * 1024,
			EmbeddingDim:      768,
		},
		Chunking: ChunkingConfig{
			AutoSplitEnabled: true,
			OverlapChars:     50,
		},
		Memory: MemoryConfig{
			IncludeHostnameTag: false,
			EmbeddingDim:       384,
		},
		Consolidation: ConsolidationConfig{
			Enabled:     true,
			DailyCron:   "0 2 * * *",
			WeeklyCron:  "0 3 * * 0",
			MonthlyCron: "0 4 1 * *",
			HalfLifeDays: map[string]float64{
				"critical":  365,
				"reference": 180,
				"standard":  30,
				"temporary": 7,
				"default":   30,
			},
			ClusterEps:          0.3,
			ClusterMinSamples:   5,
			AssociationMinSim:   0.3,
			AssociationMaxSim:   0.7,
			MaxNewEdgesPerRun:   200,
			CompressionMinSize:  5,
			CompressionMaxChars: 500,
			ForgetMinAgeDays:    90,
			ForgetRelevanceMax:  0.1,
		},
		LogLevel: "info",
		LogJSON:  true,
	}
}

// Load loads configuration from environment variables (with .env support),
// optionally overlaid with a YAML file, on top of Default().
func Load(yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Default()

	if yamlPath != "" {
		if err := overlayYAML(cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// overlayYAML parses the file into a generic map first, then uses
// mapstructure to decode it onto cfg with weakly-typed input and a
// string-to-duration hook, so a YAML overlay can say `RequestTimeout: 10s`
// for a time.Duration field without a custom yaml.Unmarshaler.
func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("config: applying overlay %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("MCP_MEMORY_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = Backend(v)
	}
	cfg.SQLite.Path = strOr("MCP_MEMORY_SQLITE_PATH", cfg.SQLite.Path)
	cfg.SQLite.Pragmas = strOr("MCP_MEMORY_SQLITE_PRAGMAS", cfg.SQLite.Pragmas)

	cfg.Hybrid.SyncIntervalSeconds = intOr("MCP_HYBRID_SYNC_INTERVAL", cfg.Hybrid.SyncIntervalSeconds)
	cfg.Hybrid.BatchSize = intOr("MCP_HYBRID_BATCH_SIZE", cfg.Hybrid.BatchSize)
	cfg.Hybrid.MaxQueueSize = intOr("MCP_HYBRID_MAX_QUEUE_SIZE", cfg.Hybrid.MaxQueueSize)
	cfg.Hybrid.MaxEmptyBatches = intOr("MCP_HYBRID_MAX_EMPTY_BATCHES", cfg.Hybrid.MaxEmptyBatches)
	cfg.Hybrid.MinCheckCount = intOr("MCP_HYBRID_MIN_CHECK_COUNT", cfg.Hybrid.MinCheckCount)
	cfg.Hybrid.RedisAddr = strOr("MCP_MEMORY_REDIS_ADDR", cfg.Hybrid.RedisAddr)

	cfg.Chunking.AutoSplitEnabled = boolOr("MCP_ENABLE_AUTO_SPLIT", cfg.Chunking.AutoSplitEnabled)
	cfg.Chunking.OverlapChars = intOr("MCP_CONTENT_SPLIT_OVERLAP", cfg.Chunking.OverlapChars)

	cfg.Memory.IncludeHostnameTag = boolOr("MCP_MEMORY_INCLUDE_HOSTNAME", cfg.Memory.IncludeHostnameTag)

	cfg.Consolidation.Enabled = boolOr("MCP_CONSOLIDATION_ENABLED", cfg.Consolidation.Enabled)
	cfg.Consolidation.DailyCron = strOr("MCP_SCHEDULE_DAILY", cfg.Consolidation.DailyCron)
	cfg.Consolidation.WeeklyCron = strOr("MCP_SCHEDULE_WEEKLY", cfg.Consolidation.WeeklyCron)
	cfg.Consolidation.MonthlyCron = strOr("MCP_SCHEDULE_MONTHLY", cfg.Consolidation.MonthlyCron)

	cfg.Cloud.QdrantHost = strOr("MCP_MEMORY_CLOUD_QDRANT_HOST", cfg.Cloud.QdrantHost)
	cfg.Cloud.QdrantPort = intOr("MCP_MEMORY_CLOUD_QDRANT_PORT", cfg.Cloud.QdrantPort)
	cfg.Cloud.QdrantAPIKey = strOr("MCP_MEMORY_CLOUD_QDRANT_API_KEY", cfg.Cloud.QdrantAPIKey)
	cfg.Cloud.QdrantCollection = strOr("MCP_MEMORY_CLOUD_COLLECTION", cfg.Cloud.QdrantCollection)
	cfg.Cloud.MetadataBaseURL = strOr("MCP_MEMORY_CLOUD_METADATA_URL", cfg.Cloud.MetadataBaseURL)
	cfg.Cloud.BlobBaseURL = strOr("MCP_MEMORY_CLOUD_BLOB_URL", cfg.Cloud.BlobBaseURL)
	cfg.Cloud.BearerToken = strOr("MCP_MEMORY_CLOUD_TOKEN", cfg.Cloud.BearerToken)

	cfg.LogLevel = strOr("MCP_MEMORY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogJSON = boolOr("MCP_MEMORY_LOG_JSON", cfg.LogJSON)
}

func strOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

// Validate checks internal consistency of the loaded configuration.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLiteVec, BackendCloud, BackendHybrid:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.Hybrid.MaxQueueSize <= 0 {
		return fmt.Errorf("hybrid max queue size must be positive, got %d", c.Hybrid.MaxQueueSize)
	}
	if c.Chunking.OverlapChars < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.Chunking.OverlapChars)
	}
	if c.Cloud.MaxContentLength <= 0 {
		return fmt.Errorf("cloud max content length must be positive, got %d", c.Cloud.MaxContentLength)
	}
	for name := range c.Consolidation.HalfLifeDays {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("consolidation half-life map has an empty memory type key")
		}
	}
	return nil
}

// HalfLife returns the configured half-life for a memory type, falling back
// to the "default" entry and then to 30 days if neither is configured.
func (c *Config) HalfLife(memoryType string) time.Duration {
	if days, ok := c.Consolidation.HalfLifeDays[memoryType]; ok {
		return time.Duration(days * 24 * float64(time.Hour))
	}
	if days, ok := c.Consolidation.HalfLifeDays["default"]; ok {
		return time.Duration(days * 24 * float64(time.Hour))
	}
	return 30 * 24 * time.Hour
}
