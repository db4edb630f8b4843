package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Scheduling.MinSessionDuration)
	assert.Equal(t, 3, cfg.Policy.UsernameMin)
	assert.Equal(t, 8, cfg.Policy.PasswordMin)
	assert.Equal(t, "console", cfg.Mail.Provider)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SCHEDULING_MIN_SESSION_DURATION", "45m")
	t.Setenv("POLICY_PASSWORD_MIN", "12")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("MAIL_PROVIDER", "SendGrid")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, cfg.Scheduling.MinSessionDuration)
	assert.Equal(t, 12, cfg.Policy.PasswordMin)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "sendgrid", cfg.Mail.Provider)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
