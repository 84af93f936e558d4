// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strings"
)

// Config carries the process-level settings.
type Config struct {
	Port         string
	DBPath       string
	NATSURL      string // empty disables the event bridge
	LogLevel     string
	AllowOrigins []string
}

// Load reads configuration from the environment with safe defaults.
// cmd/server loads .env beforehand via godotenv.
func Load() Config {
	port := getEnv("PORT", "8080")
	return Config{
		Port:     port,
		DBPath:   getEnv("DB_PATH", "./data/truco.db"),
		NATSURL:  os.Getenv("NATS_URL"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		AllowOrigins: splitList(getEnv("ORIGIN_ALLOWLIST",
			"http://localhost:"+port+",http://127.0.0.1:"+port)),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
