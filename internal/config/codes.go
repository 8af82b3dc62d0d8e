package config

import (
	"os"
	"strconv"
	"time"
)

type CodesConfig struct {
	ShareCodeLength   int
	ShareCodeTimeout  time.Duration
	ConfirmCodeLength int
	MaxSharePerUser   int
	RateLimitWindow   time.Duration
	QRImageTTL        time.Duration
}

func LoadCodesConfig() *CodesConfig {
	return &CodesConfig{
		ShareCodeLength:   getEnvAsInt("SHARE_CODE_LENGTH", 6),
		ShareCodeTimeout:  getEnvAsDuration("SHARE_CODE_TIMEOUT", 15*time.Minute),
		ConfirmCodeLength: getEnvAsInt("CONFIRM_CODE_LENGTH", 6),
		MaxSharePerUser:   getEnvAsInt("SHARE_CODE_MAX_PER_USER", 5),
		RateLimitWindow:   getEnvAsDuration("SHARE_CODE_RATE_WINDOW", 1*time.Hour),
		QRImageTTL:        getEnvAsDuration("SHARE_CODE_QR_TTL", 5*time.Minute),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
