package config

import (
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	APIKey   string
	SSLMode  string
	MaxConns int32
	MinConns int32
	// Timeout bounds every round trip to the store.
	Timeout time.Duration
}

type ModelConfig struct {
	// Path to the serialized ONNX classifier. A missing or unloadable
	// artifact is not fatal; the pipeline serves a "not loaded" notice.
	Path string
}

type JWTConfig struct {
	SecretKey       string
	TokenExpiration time.Duration
}

type Config struct {
	Postgres    PostgresConfig
	Model       ModelConfig
	JWT         JWTConfig
	ServerPort  string
	MetricsAddr string
	PprofAddr   string
	UploadDir   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Postgres: PostgresConfig{
			Host: getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port: getEnvOrDefault("POSTGRES_PORT", "5432"),
			DB:   getEnvOrDefault("POSTGRES_DB", "retinagrade"),
			// The store is reached with an IAM-style credential pair.
			// Either variable missing puts the registry in fallback mode.
			Username: os.Getenv("STORE_USERNAME"),
			APIKey:   os.Getenv("STORE_API_KEY"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			MaxConns: 30,
			MinConns: 5,
			Timeout:  getDurationOrDefault("STORE_TIMEOUT", 5*time.Second),
		},
		Model: ModelConfig{
			Path: getEnvOrDefault("MODEL_PATH", "model/retinopathy-xception.onnx"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnvOrDefault("JWT_SECRET_KEY", "default-secret-key-change-in-production-min-32-chars"),
			TokenExpiration: getDurationOrDefault("SESSION_TTL", 24*time.Hour),
		},
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8091"),
		MetricsAddr: getEnvOrDefault("METRICS_ADDR", ":9092"),
		PprofAddr:   getEnvOrDefault("PPROF_ADDR", ":6060"),
		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "uploads"),
	}

	return cfg, nil
}

// StoreConfigured reports whether both store credential variables are set.
func (c *Config) StoreConfigured() bool {
	return c.Postgres.Username != "" && c.Postgres.APIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
