package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	AppName            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for exported workbooks.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	// ExportRetentionDays expires archived exports; zero keeps them forever.
	ExportRetentionDays int
	// PresignTTL bounds how long an export download link stays valid.
	PresignTTL time.Duration
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
	// Issuer must match the token's iss claim. Set JWT_ISSUER= (empty) to
	// accept legacy tokens that carry no iss.
	Issuer    string
	TokenTTL  time.Duration
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level    string
	Timezone string
}

// LimitsConfig bounds request payloads.
type LimitsConfig struct {
	MaxRows      int
	BodyLimitMB  int
	RecentLimit  int
	RecentMaxCap int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Auth     AuthConfig
	Log      LogConfig
	Limits   LimitsConfig
	CacheTTL time.Duration
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			AppName:            getEnv("DB_APP_NAME", "sheetlens"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:            getEnv("MINIO_ENDPOINT", ""),
			AccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:           getEnv("MINIO_SECRET_KEY", ""),
			Bucket:              getEnv("MINIO_BUCKET", ""),
			UseSSL:              getEnvBool("MINIO_USE_SSL", false),
			Region:              getEnv("MINIO_REGION", "us-east-1"),
			ExportRetentionDays: getEnvInt("EXPORT_RETENTION_DAYS", 7),
			PresignTTL:          getEnvDuration("MINIO_PRESIGN_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "sheetlens"),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Timezone: getEnv("LOG_TIMEZONE", "UTC"),
		},
		Limits: LimitsConfig{
			MaxRows:      getEnvInt("MAX_ROWS", 50000),
			BodyLimitMB:  getEnvInt("BODY_LIMIT_MB", 16),
			RecentLimit:  getEnvInt("RECENT_LIMIT", 10),
			RecentMaxCap: getEnvInt("RECENT_MAX", 100),
		},
		// Per-process; leave at 0 when running more than one replica.
		CacheTTL: getEnvDuration("RECENT_CACHE_TTL", 0),
	}
}

// Location resolves the configured log timezone, falling back to UTC.
func (c LogConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
