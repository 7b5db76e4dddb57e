package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              string
	StoragePath       string
	MaxFileSize       int64 // per uploaded file
	MaxFilesPerUpload int
	MaxStorageBytes   int64 // global quota across all live shares
	ShareTTL          time.Duration
	SweepInterval     time.Duration
	BaseURL           string
	AllowedOrigins    []string
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "5000"),
		StoragePath:       getEnv("STORAGE_PATH", "./uploads"),
		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 200*1024*1024),        // 200MB per file
		MaxFilesPerUpload: getEnvInt("MAX_FILES_PER_UPLOAD", 15),
		MaxStorageBytes:   getEnvInt64("MAX_STORAGE_BYTES", 2*1024*1024*1024), // 2GiB total
		ShareTTL:          getEnvMinutes("SHARE_TTL_MINUTES", 5*time.Minute),
		SweepInterval:     getEnvMinutes("SWEEP_INTERVAL_MINUTES", 5*time.Minute),
		BaseURL:           getEnv("BASE_URL", "http://localhost:5000"),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvMinutes(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if minutes, err := strconv.ParseFloat(val, 64); err == nil {
			return time.Duration(minutes * float64(time.Minute))
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
