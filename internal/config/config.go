// Package config loads the resolver's tunables from the environment,
// the way cmd/bud reads DISCORD_TOKEN et al.: godotenv for an optional
// .env file, then os.Getenv with typed defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/vthunder/bud2/internal/logging"
)

// Config holds every recognized option from spec §6.
type Config struct {
	DormancyThreshold          time.Duration
	SemanticSimilarityThreshold float64
	TopicShiftThreshold        float64
	MaxThreadContextMessages   int
	EnableCaching              bool
	ResolverTotalDeadline      time.Duration
	AnalyzerDeadline           time.Duration
	AdapterDeadline            time.Duration
	ContextCacheTTL            time.Duration
	EmbeddingCacheTTL          time.Duration
	EmbeddingDimension         int

	EmbeddingServiceURL  string
	NERServiceURL        string
	IntentServiceURL     string
	SentimentServiceURL  string
	WorkingStoreURL      string
	SemanticMemoryURL    string
}

// Default returns the configuration with every spec default applied.
func Default() Config {
	return Config{
		DormancyThreshold:           2 * time.Hour,
		SemanticSimilarityThreshold: 0.7,
		TopicShiftThreshold:         0.4,
		MaxThreadContextMessages:    50,
		EnableCaching:               true,
		ResolverTotalDeadline:       3 * time.Second,
		AnalyzerDeadline:            1500 * time.Millisecond,
		AdapterDeadline:             2 * time.Second,
		ContextCacheTTL:             300 * time.Second,
		EmbeddingCacheTTL:           3600 * time.Second,
		EmbeddingDimension:          768,
	}
}

// FromEnv applies environment overrides on top of Default. Malformed
// values are logged at Debug and the default is kept, matching the
// teacher's tolerant .env handling in cmd/bud/main.go.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("RESOLVER_DORMANCY_THRESHOLD_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil {
			cfg.DormancyThreshold = time.Duration(h) * time.Hour
		} else {
			logging.Debug("config", "invalid RESOLVER_DORMANCY_THRESHOLD_HOURS=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_SEMANTIC_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SemanticSimilarityThreshold = f
		} else {
			logging.Debug("config", "invalid RESOLVER_SEMANTIC_SIMILARITY_THRESHOLD=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_TOPIC_SHIFT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TopicShiftThreshold = f
		} else {
			logging.Debug("config", "invalid RESOLVER_TOPIC_SHIFT_THRESHOLD=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_MAX_THREAD_CONTEXT_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxThreadContextMessages = n
		} else {
			logging.Debug("config", "invalid RESOLVER_MAX_THREAD_CONTEXT_MESSAGES=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_ENABLE_CACHING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableCaching = b
		} else {
			logging.Debug("config", "invalid RESOLVER_ENABLE_CACHING=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_TOTAL_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.ResolverTotalDeadline = time.Duration(ms) * time.Millisecond
		} else {
			logging.Debug("config", "invalid RESOLVER_TOTAL_DEADLINE_MS=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_ANALYZER_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.AnalyzerDeadline = time.Duration(ms) * time.Millisecond
		} else {
			logging.Debug("config", "invalid RESOLVER_ANALYZER_DEADLINE_MS=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_ADAPTER_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.AdapterDeadline = time.Duration(ms) * time.Millisecond
		} else {
			logging.Debug("config", "invalid RESOLVER_ADAPTER_DEADLINE_MS=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_CONTEXT_CACHE_TTL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.ContextCacheTTL = time.Duration(s) * time.Second
		} else {
			logging.Debug("config", "invalid RESOLVER_CONTEXT_CACHE_TTL_SECONDS=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_EMBEDDING_CACHE_TTL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingCacheTTL = time.Duration(s) * time.Second
		} else {
			logging.Debug("config", "invalid RESOLVER_EMBEDDING_CACHE_TTL_SECONDS=%q, keeping default", v)
		}
	}
	if v := os.Getenv("RESOLVER_EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDimension = n
		} else {
			logging.Debug("config", "invalid RESOLVER_EMBEDDING_DIMENSION=%q, keeping default", v)
		}
	}

	cfg.EmbeddingServiceURL = envOr("RESOLVER_EMBEDDING_SERVICE_URL", "http://localhost:8801")
	cfg.NERServiceURL = envOr("RESOLVER_NER_SERVICE_URL", "http://localhost:8802")
	cfg.IntentServiceURL = envOr("RESOLVER_INTENT_SERVICE_URL", "http://localhost:8803")
	cfg.SentimentServiceURL = envOr("RESOLVER_SENTIMENT_SERVICE_URL", "http://localhost:8804")
	cfg.WorkingStoreURL = envOr("RESOLVER_WORKING_STORE_URL", "http://localhost:8805")
	cfg.SemanticMemoryURL = envOr("RESOLVER_SEMANTIC_MEMORY_URL", "http://localhost:8806")

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
