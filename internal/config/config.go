// Package config loads the proxy's configuration surface from the
// environment (optionally seeded from a .env file, in the teacher's style).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration surface enumerated in spec.md §6.
type Config struct {
	Port string

	SourceLangDefault string
	TargetLangDefault string

	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	LLMTimeout   time.Duration

	SummaryEnabled    bool
	SummaryMaxTokens  int
	SummaryChunkChars int

	GlossaryEnabled    bool
	GlossaryMaxTokens  int
	GlossaryChunkChars int

	ContextEnabled      bool
	ContextBatchSize    int
	PrecedingLines      int
	FollowingLines      int
	ContextConcurrency  int
	ContextBatchRetries int
	ContextMaxTokens    int

	QueueConcurrency int
	MaxRetries       int
	RetryBaseMs      int64

	CacheTTLHours        int
	LRUMaxItems          int
	CleanupIntervalMs    int64

	SegmentMinDurationMs  int64
	SegmentMaxDurationMs  int64
	SegmentGapMs          int64
	SegmentMaxChars       int
	SegmentMaxWords       int
	SRV3OverlapGapMs      int

	UpstreamFetchTimeout time.Duration

	AdminToken string

	StorePath string
}

// Load reads configuration from the environment, seeding it from a local
// .env file when present (the teacher's llm-proxy does the same).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		SourceLangDefault: getEnv("SOURCE_LANG_DEFAULT", "en"),
		TargetLangDefault: getEnv("TARGET_LANG_DEFAULT", "zh-CN"),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMTimeout: getDurationMs("LLM_TIMEOUT_MS", 30000),

		SummaryEnabled:    getBool("SUMMARY_ENABLED", true),
		SummaryMaxTokens:  getInt("SUMMARY_MAX_TOKENS", 512),
		SummaryChunkChars: getInt("SUMMARY_CHUNK_CHARS", 8000),

		GlossaryEnabled:    getBool("GLOSSARY_ENABLED", true),
		GlossaryMaxTokens:  getInt("GLOSSARY_MAX_TOKENS", 512),
		GlossaryChunkChars: getInt("GLOSSARY_CHUNK_CHARS", 8000),

		ContextEnabled:      getBool("CONTEXT_ENABLED", true),
		ContextBatchSize:    getInt("CONTEXT_BATCH_SIZE", 8),
		PrecedingLines:      getInt("CONTEXT_PRECEDING_LINES", 3),
		FollowingLines:      getInt("CONTEXT_FOLLOWING_LINES", 2),
		ContextConcurrency:  getInt("CONTEXT_CONCURRENCY", 4),
		ContextBatchRetries: getInt("CONTEXT_BATCH_RETRIES", 2),
		ContextMaxTokens:    getInt("CONTEXT_MAX_TOKENS", 1024),

		QueueConcurrency: getInt("QUEUE_CONCURRENCY", 3),
		MaxRetries:       getInt("QUEUE_MAX_RETRIES", 3),
		RetryBaseMs:      getInt64("QUEUE_RETRY_BASE_MS", 2000),

		CacheTTLHours:     getInt("CACHE_TTL_HOURS", 168),
		LRUMaxItems:       getInt("CACHE_LRU_MAX_ITEMS", 1000),
		CleanupIntervalMs: getInt64("CACHE_CLEANUP_INTERVAL_MS", 3600000),

		SegmentMinDurationMs: getInt64("SEGMENT_MIN_DURATION_MS", 3000),
		SegmentMaxDurationMs: getInt64("SEGMENT_MAX_DURATION_MS", 7000),
		SegmentGapMs:         getInt64("SEGMENT_GAP_MS", 1200),
		SegmentMaxChars:      getInt("SEGMENT_MAX_CHARS", 0),
		SegmentMaxWords:      getInt("SEGMENT_MAX_WORDS", 0),
		SRV3OverlapGapMs:     getInt("SRV3_OVERLAP_GAP_MS", 100),

		UpstreamFetchTimeout: getDurationMs("UPSTREAM_FETCH_TIMEOUT_MS", 5000),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		StorePath: getEnv("STORE_PATH", "data/proxy.db"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationMs(key string, defaultMs int64) time.Duration {
	return time.Duration(getInt64(key, defaultMs)) * time.Millisecond
}
