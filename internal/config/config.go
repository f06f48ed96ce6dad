package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the server's environment-driven settings.
type Config struct {
	Addr        string // listen address for the HTTP/WS server
	DatabaseDSN string // postgres DSN for the game archive; empty disables archiving
	LogLevel    string // zap level: debug, info, warn, error
}

// Load reads an optional .env file, then the environment. Every knob has
// a default; a missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:        getEnvWithDefault("ADDR", ":8080"),
		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
