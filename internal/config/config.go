// Package config aggregates agent configuration from the environment, with
// an optional .env file for development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for the agent and the rollout tooling.
type Config struct {
	AppPort       string
	JWTSecret     string
	JWTExpMinutes int
	AESKey        []byte

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// ResyncPeriod is the shared informer resync interval for the workload
	// cache. Zero disables periodic resync.
	ResyncPeriod time.Duration
	// ManifestPath is the deployed manifest watched for drift. Empty
	// disables the drift watch.
	ManifestPath string
	// RolloutParallelism bounds concurrent cluster rollouts.
	RolloutParallelism int
}

// LoadEnv loads a .env file when one is present (dev mode); in production
// the environment is expected to be populated directly.
func LoadEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// New builds a Config from environment variables.
func New() *Config {
	return &Config{
		AppPort:            getEnv("APP_PORT", "8080"),
		JWTSecret:          getEnv("APP_JWT_SECRET", "change-me-secret"),
		JWTExpMinutes:      getEnvInt("APP_JWT_EXP_MINUTES", 60),
		AESKey:             []byte(getEnv("APP_AES_KEY", "change-me-32-bytes-key-change-me")),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "conntracer"),
		DBPassword:         getEnv("DB_PASSWORD", "conntracer"),
		DBName:             getEnv("DB_NAME", "conntracer"),
		ResyncPeriod:       time.Duration(getEnvInt("CACHE_RESYNC_SECONDS", 0)) * time.Second,
		ManifestPath:       getEnv("MANIFEST_PATH", ""),
		RolloutParallelism: getEnvInt("ROLLOUT_PARALLELISM", 4),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var val int
		_, err := fmt.Sscanf(v, "%d", &val)
		if err == nil {
			return val
		}
	}
	return def
}
