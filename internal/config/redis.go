package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

// GetRedisConfig starts from the redis section of the loaded config (if any)
// and lets REDIS_* environment variables override it.
func GetRedisConfig() RedisConfig {
	rc := RedisConfig{
		Addr:   "localhost:6379",
		Stream: "forecast_runs",
	}
	if instance != nil {
		rc.Enabled = instance.Redis.Enabled
		rc.Password = instance.Redis.Password
		rc.DB = instance.Redis.DB
		if instance.Redis.Addr != "" {
			rc.Addr = instance.Redis.Addr
		}
		if instance.Redis.Stream != "" {
			rc.Stream = instance.Redis.Stream
		}
	}

	if enabled := os.Getenv("REDIS_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			rc.Enabled = parsed
		}
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			rc.DB = parsed
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		rc.Password = password
	}
	rc.Addr = getEnv("REDIS_ADDR", rc.Addr)
	rc.Stream = getEnv("REDIS_STREAM", rc.Stream)

	return rc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
