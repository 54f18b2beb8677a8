package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	StoreDriver string

	StorageBackend string
	StoragePath    string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	StatusTTL        time.Duration
	RabbitMQURL      string
	RabbitMQExchange string

	InferenceBaseURL string
	InferenceAPIKey  string
	InferenceTimeout time.Duration

	GeoIPDBPath        string
	PipelineConfigPath string
	DefaultTier        string

	WorkerPoolSize     int
	JobPollInterval    time.Duration
	CancelPollInterval time.Duration
	EmbeddedWorkers    bool
	EventBufferSize    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendFilesystem)),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       getEnv("S3_BUCKET", "videojobs"),
		S3UseSSL:       getEnvBool("S3_USE_SSL", false),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		StatusTTL:        time.Second * time.Duration(getEnvInt("STATUS_TTL_SECONDS", 3600)),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "jobs.status"),

		InferenceBaseURL: getEnv("INFERENCE_BASE_URL", "http://localhost:9000/v1"),
		InferenceAPIKey:  os.Getenv("INFERENCE_API_KEY"),
		InferenceTimeout: time.Second * time.Duration(getEnvInt("INFERENCE_TIMEOUT_SECONDS", 600)),

		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		PipelineConfigPath: os.Getenv("PIPELINE_CONFIG"),
		DefaultTier:        getEnv("DEFAULT_TIER", "free"),

		WorkerPoolSize:     getEnvInt("WORKER_POOL_SIZE", 4),
		JobPollInterval:    time.Millisecond * time.Duration(getEnvInt("JOB_POLL_INTERVAL_MS", 2000)),
		CancelPollInterval: time.Millisecond * time.Duration(getEnvInt("CANCEL_POLL_INTERVAL_MS", 1000)),
		EventBufferSize:    getEnvInt("EVENT_BUFFER_SIZE", 1024),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
	// single-process deployments run the workers inside the API
	cfg.EmbeddedWorkers = getEnvBool("EMBEDDED_WORKERS", cfg.StoreDriver == StoreDriverMemory)

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	switch cfg.StorageBackend {
	case StorageBackendFilesystem:
	case StorageBackendS3:
		if cfg.S3Endpoint == "" || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 storage backend")
		}
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q", StorageBackendFilesystem, StorageBackendS3)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
