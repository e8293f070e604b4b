/*
Package config reads the service configuration from the environment.
Values from a local .env file are loaded automatically.
*/
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

// Config holds every environment-driven setting of the API.
type Config struct {
	Port int

	// Database connection parts (BLUEPRINT_DB_*). An empty host selects the in-memory store.
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Chat-completion / embedding provider.
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAIEmbeddingModel string

	// Planner tuning.
	DefaultProteinPerKg float64
	DefaultStepGoal     int
	DiningPrimarySource string
	ClassesCSVPath      string
	ClassesICalURL      string
	Location            *time.Location

	// Feature flags.
	DisableAIInsights bool
	DevAuthBypass     bool
	DevUserID         string

	SessionSecret   string
	EstimateLogPath string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// Load builds a Config from the current environment, applying defaults.
func Load() Config {
	cfg := Config{
		Port:                 envInt("PORT", 8080),
		DBHost:               os.Getenv("BLUEPRINT_DB_HOST"),
		DBPort:               envString("BLUEPRINT_DB_PORT", "5432"),
		DBName:               os.Getenv("BLUEPRINT_DB_DATABASE"),
		DBUser:               os.Getenv("BLUEPRINT_DB_USERNAME"),
		DBPassword:           os.Getenv("BLUEPRINT_DB_PASSWORD"),
		DBSchema:             envString("BLUEPRINT_DB_SCHEMA", "public"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:          envString("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbeddingModel: envString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		DefaultProteinPerKg:  envFloat("DEFAULT_PROTEIN_PER_KG", 1.2),
		DefaultStepGoal:      envInt("DEFAULT_STEP_GOAL", 8000),
		DiningPrimarySource:  envString("DINING_PRIMARY_SOURCE", "DUKE_DINING"),
		ClassesCSVPath:       os.Getenv("CLASSES_CSV_PATH"),
		ClassesICalURL:       os.Getenv("CLASSES_ICAL_URL"),
		DisableAIInsights:    envBool("DISABLE_AI_INSIGHTS", false),
		DevAuthBypass:        envBool("DEV_AUTH_BYPASS", false),
		DevUserID:            envString("DEV_USER_ID", "00000000-0000-0000-0000-000000000001"),
		SessionSecret:        os.Getenv("SESSION_SECRET"),
		EstimateLogPath:      envString("ESTIMATE_LOG_PATH", "data/calorie_estimations.jsonl"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             envInt("SMTP_PORT", 587),
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		SMTPFrom:             os.Getenv("SMTP_FROM"),
	}

	cfg.Location = time.Local
	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn().Err(err).Str("tz", tz).Msg("Unknown APP_TIMEZONE, using local time")
		} else {
			cfg.Location = loc
		}
	}

	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}

	return cfg
}

// AIEnabled reports whether a provider API key is configured.
func (c Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v == 0 {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
