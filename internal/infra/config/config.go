package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int
	DBMinConns int

	RedisURL string

	RerankURL           string
	RerankModel         string
	RerankTimeoutSecs   int
	RerankEnabled       bool
	RerankMaxCandidates int

	MaxResults          int
	AssemblyParallelism int
	Phase0DeadlineMs    int
	Phase1DeadlineMs    int
	Phase2DeadlineMs    int

	DenseRescoreEnabled bool
	DenseRescoreAlpha   float64

	SnapshotSampleRate float64

	EngagementHalfLifeHours     int
	SnapshotRefreshIntervalSecs int
	IndexEnsureIntervalSecs     int

	DrainConsumer   string
	DrainBatchSize  int
	DrainRatePerSec int
}

func Load() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "retrieval-engine"
	}

	return &Config{
		Env:        getEnv("ENV", "development"),
		Port:       getEnv("PORT", "9020"),
		DBHost:     getEnv("DB_HOST", "retrieval-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "retrieval_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "retrieval_password"),
		DBName:     getEnv("DB_NAME", "retrieval_db"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 25),
		DBMinConns: getEnvInt("DB_MIN_CONNS", 4),

		RedisURL: getEnv("REDIS_URL", "redis://retrieval-redis:6379/0"),

		RerankURL:           getEnv("RERANK_URL", "http://rerank-model:8001"),
		RerankModel:         getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
		RerankTimeoutSecs:   getEnvInt("RERANK_TIMEOUT_SECS", 5),
		RerankEnabled:       getEnvBool("RERANK_ENABLED", true),
		RerankMaxCandidates: getEnvInt("RERANK_MAX_CANDIDATES", 30),

		MaxResults:          getEnvInt("QUERY_MAX_RESULTS", 50),
		AssemblyParallelism: getEnvInt("FEATURE_ASSEMBLY_PARALLELISM", 8),
		Phase0DeadlineMs:    getEnvInt("QUERY_PHASE0_DEADLINE_MS", 300),
		Phase1DeadlineMs:    getEnvInt("QUERY_PHASE1_DEADLINE_MS", 1500),
		Phase2DeadlineMs:    getEnvInt("QUERY_PHASE2_DEADLINE_MS", 2000),

		DenseRescoreEnabled: getEnvBool("DENSE_RESCORE_ENABLED", true),
		DenseRescoreAlpha:   getEnvFloat("DENSE_RESCORE_ALPHA", 0.5),

		SnapshotSampleRate: getEnvFloat("FEATURE_SNAPSHOT_SAMPLE_RATE", 0.05),

		EngagementHalfLifeHours:     getEnvInt("ENGAGEMENT_HALF_LIFE_HOURS", 168),
		SnapshotRefreshIntervalSecs: getEnvInt("SNAPSHOT_REFRESH_INTERVAL_SECS", 300),
		IndexEnsureIntervalSecs:     getEnvInt("INDEX_ENSURE_INTERVAL_SECS", 3600),

		DrainConsumer:   getEnv("FEEDBACK_DRAIN_CONSUMER", hostname),
		DrainBatchSize:  getEnvInt("FEEDBACK_DRAIN_BATCH_SIZE", 200),
		DrainRatePerSec: getEnvInt("FEEDBACK_DRAIN_RATE_PER_SEC", 20),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	// 1. Try direct environment variable
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	// 2. Try reading from file specified by fileEnvKey
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
