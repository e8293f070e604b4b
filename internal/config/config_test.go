package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEFAULT_PROTEIN_PER_KG", "")
	t.Setenv("SMTP_USER", "mailer@example.edu")
	t.Setenv("SMTP_FROM", "")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1.2, cfg.DefaultProteinPerKg)
	assert.Equal(t, 8000, cfg.DefaultStepGoal)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "mailer@example.edu", cfg.SMTPFrom)
	assert.False(t, cfg.AIEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEFAULT_PROTEIN_PER_KG", "1.6")
	t.Setenv("DEV_AUTH_BYPASS", "true")
	t.Setenv("APP_TIMEZONE", "America/New_York")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 1.6, cfg.DefaultProteinPerKg)
	assert.True(t, cfg.DevAuthBypass)
	assert.True(t, cfg.AIEnabled())
	assert.Equal(t, "America/New_York", cfg.Location.String())
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_FLOAT", "-3")

	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, 1.5, envFloat("X_FLOAT", 1.5))
}
