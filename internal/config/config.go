package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	StorageLocal = "local"
	StorageMinIO = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects the backend that holds uploaded files.
type StorageConfig struct {
	Driver   string
	LocalDir string
	MinIO    MinIOConfig
}

// RedisConfig points at the shared counter store used for rate limiting.
// An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HTTPConfig controls how client addresses are resolved behind a reverse
// proxy. ProxyHeader is only honoured for requests from TrustedProxies when
// that list is set.
type HTTPConfig struct {
	ProxyHeader    string
	TrustedProxies []string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig bounds bulk export requests per client per window.
type RateLimitConfig struct {
	ExportLimit int
	Window      time.Duration
}

// MediaConfig holds upload and export limits.
type MediaConfig struct {
	UploadMaxBytes int64
	ExportMaxItems int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Env             string
	Port            string
	DBDriver        string
	ShutdownTimeout time.Duration
	HTTP            HTTPConfig
	Database        DatabaseConfig
	Mongo           MongoConfig
	Storage         StorageConfig
	Redis           RedisConfig
	JWT             JWTConfig
	Log             LogConfig
	RateLimit       RateLimitConfig
	Media           MediaConfig
}

// IsProduction reports whether the service runs with production defaults.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Env:             getEnv("APP_ENV", EnvDevelopment),
		Port:            getEnv("PORT", "8080"),
		DBDriver:        getEnv("DB_DRIVER", DriverMongo),
		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SEC", 15)) * time.Second,
		HTTP: HTTPConfig{
			ProxyHeader:    getEnv("PROXY_HEADER", ""),
			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DATABASE", "media_gallery"),
			Collection: getEnv("MONGO_COLLECTION", "media"),
		},
		Storage: StorageConfig{
			Driver:   getEnv("STORAGE_DRIVER", StorageLocal),
			LocalDir: getEnv("STORAGE_LOCAL_DIR", "uploads"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    time.Duration(getEnvInt("JWT_TTL_MINUTES", 60*24*7)) * time.Minute,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			ExportLimit: getEnvInt("RATE_LIMIT_EXPORT", 30),
			Window:      time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 900)) * time.Second,
		},
		Media: MediaConfig{
			UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
			ExportMaxItems: getEnvInt("EXPORT_MAX_ITEMS", 100),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
