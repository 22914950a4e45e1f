package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               int
	SpeechKey          string
	SpeechRegion       string
	DefaultLocale      string
	DefaultMinSpeakers int
	DefaultMaxSpeakers int
	LocalesCacheTTL    time.Duration
	RateLimitPerMin    int
	HTTPTimeout        time.Duration
	LogLevel           string
}

func Load() Config {
	return Config{
		Port:               envInt("SPEECHD_PORT", 8600),
		SpeechKey:          envStr("AZURE_SPEECH_KEY", ""),
		SpeechRegion:       envStr("AZURE_SPEECH_REGION", ""),
		DefaultLocale:      envStr("DEFAULT_LOCALE", "en-US"),
		DefaultMinSpeakers: envInt("DEFAULT_MIN_SPEAKERS", 2),
		DefaultMaxSpeakers: envInt("DEFAULT_MAX_SPEAKERS", 5),
		LocalesCacheTTL:    time.Duration(envInt("LOCALES_CACHE_TTL_MIN", 60)) * time.Minute,
		RateLimitPerMin:    envInt("RATE_LIMIT_PER_MINUTE", 10),
		HTTPTimeout:        time.Duration(envInt("HTTP_TIMEOUT_SEC", 30)) * time.Second,
		LogLevel:           envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
