package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port      int
	LogLevel  string
	APIKey    string
	RateLimit float64
	RateBurst int

	// Storage: DatabaseURL wins, then SQLitePath, else sessions live in memory.
	DatabaseURL string
	SQLitePath  string

	NatsURL   string
	NatsToken string

	LLMProvider       string
	LLMAPIKey         string
	LLMModel          string
	LLMBaseURL        string
	LLMClassifier     bool
	GeneratorTimeout  time.Duration
	ClassifierTimeout time.Duration

	ReportURL    string
	ReportAPIKey string

	ScamThreshold  float64
	ExternalWeight float64
	MinReportTurns int
	MaxTurns       int

	RulesFile     string
	TemplatesFile string
}

func Load() Config {
	return Config{
		Port:      envInt("DECOY_PORT", 8080),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		APIKey:    envStr("DECOY_API_KEY", ""),
		RateLimit: envFloat("DECOY_RATE_LIMIT", 5),
		RateBurst: envInt("DECOY_RATE_BURST", 20),

		DatabaseURL: envStr("DATABASE_URL", ""),
		SQLitePath:  envStr("DECOY_SQLITE_PATH", ""),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		LLMProvider:       strings.ToLower(envStr("DECOY_LLM_PROVIDER", "none")),
		LLMAPIKey:         envStr("DECOY_LLM_API_KEY", ""),
		LLMModel:          envStr("DECOY_LLM_MODEL", ""),
		LLMBaseURL:        envStr("DECOY_LLM_BASE_URL", ""),
		LLMClassifier:     envBool("DECOY_LLM_CLASSIFIER", true),
		GeneratorTimeout:  envDuration("DECOY_GENERATOR_TIMEOUT", 12*time.Second),
		ClassifierTimeout: envDuration("DECOY_CLASSIFIER_TIMEOUT", 8*time.Second),

		ReportURL:    envStr("DECOY_REPORT_URL", ""),
		ReportAPIKey: envStr("DECOY_REPORT_API_KEY", ""),

		ScamThreshold:  envFloat("DECOY_SCAM_THRESHOLD", 0.4),
		ExternalWeight: envFloat("DECOY_EXTERNAL_WEIGHT", 1.0),
		MinReportTurns: envInt("DECOY_MIN_REPORT_TURNS", 3),
		MaxTurns:       envInt("DECOY_MAX_TURNS", 20),

		RulesFile:     envStr("DECOY_RULES_FILE", ""),
		TemplatesFile: envStr("DECOY_TEMPLATES_FILE", ""),
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("DECOY_PORT %d out of range", c.Port))
	}
	switch c.LLMProvider {
	case "", "none":
	case "anthropic", "groq", "openai":
		if c.LLMAPIKey == "" {
			errs = append(errs, fmt.Errorf("DECOY_LLM_API_KEY is required for provider %s", c.LLMProvider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DECOY_LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.ScamThreshold <= 0 || c.ScamThreshold > 1 {
		errs = append(errs, fmt.Errorf("DECOY_SCAM_THRESHOLD %.2f must be in (0, 1]", c.ScamThreshold))
	}
	if c.ExternalWeight < 0 || c.ExternalWeight > 1 {
		errs = append(errs, fmt.Errorf("DECOY_EXTERNAL_WEIGHT %.2f must be in [0, 1]", c.ExternalWeight))
	}
	if c.MinReportTurns <= 0 {
		errs = append(errs, fmt.Errorf("DECOY_MIN_REPORT_TURNS must be positive"))
	}
	if c.MaxTurns < c.MinReportTurns {
		errs = append(errs, fmt.Errorf("DECOY_MAX_TURNS %d is below DECOY_MIN_REPORT_TURNS %d", c.MaxTurns, c.MinReportTurns))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("DECOY_RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

// LLMEnabled reports whether a generator provider is configured.
func (c Config) LLMEnabled() bool {
	return c.LLMProvider != "" && c.LLMProvider != "none"
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
