package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Server listen address (host:port)
	ServerURL string

	// Database
	DatabaseURL string

	// Time control granted to newly created games
	PerMove     time.Duration
	SuddenDeath time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		ServerURL:   getEnv("SERVER_URL", "127.0.0.1:9000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		PerMove:     time.Duration(getEnvInt64("GAME_PER_MOVE_MS", 60_000)) * time.Millisecond,
		SuddenDeath: time.Duration(getEnvInt64("GAME_SUDDEN_DEATH_MS", 300_000)) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
