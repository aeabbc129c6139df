package server

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is everything the process reads from its environment. A .env
// file in the working directory is honored for local development.
type Config struct {
	Port int

	// StoreBackend selects the shared state store: "memory" for a single
	// process (development, tests), "redis" for real multi-client
	// deployments.
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ArchiveDSN is the Postgres connection string for finished-game
	// history. Empty disables archiving.
	ArchiveDSN string

	// WordsCSV overrides the built-in drawing vocabulary.
	WordsCSV string
}

func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Port:          envInt("PORT", 8080),
		StoreBackend:  envStr("STORE_BACKEND", "memory"),
		RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		ArchiveDSN:    os.Getenv("ARCHIVE_DSN"),
		WordsCSV:      os.Getenv("WORDS_CSV"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
