package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	AuthJWTSecret string
	AuthJWTIssuer string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	CORSAllowedOrigins []string

	LogFile   LogFileConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Bootstrap BootstrapConfig
}

type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig bounds per-user mutation traffic on the points endpoints.
type RateLimitConfig struct {
	Enabled    bool
	UserRate   float64
	UserBurst  int
	LocalOnly  bool
	RetryAfter int
}

type SchedulerConfig struct {
	Enabled                   bool
	RewardExpiryIntervalSec   int
	RewardExpiryBatchSize     int
	RewardExpiryLockTTLSecond int
}

type BootstrapConfig struct {
	RunMigrations bool
	SeedCatalog   bool
	CatalogPath   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:            getenv("APP_SERVICE", "carepoints"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		NodeID:             int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		AuthJWTSecret:      strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthJWTIssuer:      strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
		OTLPEndpoint:       getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "carepoints"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime:  getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		CORSAllowedOrigins: parseList(getenv("CORS_ALLOWED_ORIGINS", "")),
		LogFile: LogFileConfig{
			Path:       strings.TrimSpace(getenv("LOG_FILE", "")),
			MaxSizeMB:  getenvInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getenvInt("LOG_FILE_MAX_BACKUPS", 3),
			MaxAgeDays: getenvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getenvBool("LOG_FILE_COMPRESS", false),
		},
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", true),
			UserRate:   getenvFloat("RATE_LIMIT_USER_RATE", 2),
			UserBurst:  getenvInt("RATE_LIMIT_USER_BURST", 10),
			LocalOnly:  getenvBool("RATE_LIMIT_LOCAL_ONLY", false),
			RetryAfter: getenvInt("RATE_LIMIT_RETRY_AFTER_SECONDS", 1),
		},
		Scheduler: SchedulerConfig{
			Enabled:                   getenvBool("SCHEDULER_ENABLED", true),
			RewardExpiryIntervalSec:   getenvInt("SCHEDULER_REWARD_EXPIRY_INTERVAL_SECONDS", 3600),
			RewardExpiryBatchSize:     getenvInt("SCHEDULER_REWARD_EXPIRY_BATCH_SIZE", 500),
			RewardExpiryLockTTLSecond: getenvInt("SCHEDULER_REWARD_EXPIRY_LOCK_TTL_SECONDS", 300),
		},
		Bootstrap: BootstrapConfig{
			RunMigrations: getenvBool("BOOTSTRAP_RUN_MIGRATIONS", true),
			SeedCatalog:   getenvBool("BOOTSTRAP_SEED_CATALOG", true),
			CatalogPath:   strings.TrimSpace(getenv("BOOTSTRAP_CATALOG_PATH", "")),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
