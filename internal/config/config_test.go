package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/placement"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, string(models.PrivacyLimited), cfg.Privacy.DefaultLevel)
	assert.Equal(t, 3*time.Second, cfg.Injection.UpstreamTimeout)

	inj := cfg.InjectionConfig()
	assert.Equal(t, placement.KindUniform, inj.ColdStartStrategy)
	assert.Equal(t, placement.KindTagMatch, inj.PersonalizedStrategy)
	assert.Equal(t, 3, inj.MaxInjections)

	sig, err := cfg.SignalsConfig()
	require.NoError(t, err)
	assert.Equal(t, 1.5, sig.Weights[models.ActionReblog])
	assert.Equal(t, int64(5), sig.MinInteractions)
	assert.Equal(t, 14*24*time.Hour, sig.ReentryAfter)

	assert.Equal(t, []string{"database"}, cfg.Server.RequiredServices)
	assert.True(t, cfg.Alerts.Enabled)
	assert.Equal(t, time.Minute, cfg.Alerts.Interval)
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		body        string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "json overrides",
			file: "corgi.json",
			body: `{
				"server": {"port": 9000},
				"injection": {"max_injections": 5, "cold_start_strategy": "after_n", "after_n": 4, "request_timeout": "2s"},
				"signals": {"weights": {"favorite": 2.0, "reblog": 1.0, "bookmark": 1.0, "reply": 1.0}}
			}`,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				inj := cfg.InjectionConfig()
				assert.Equal(t, 5, inj.MaxInjections)
				assert.Equal(t, placement.KindAfterN, inj.ColdStartStrategy)
				assert.Equal(t, 4, inj.Params.N)
				assert.Equal(t, 2*time.Second, inj.RequestTimeout)

				sig, err := cfg.SignalsConfig()
				require.NoError(t, err)
				assert.Equal(t, 2.0, sig.Weights[models.ActionFavorite])
			},
		},
		{
			name: "yaml postgres",
			file: "corgi.yaml",
			body: "database:\n  type: postgres\n  postgres_dsn: postgres://corgi@localhost/corgi\nprivacy:\n  default_level: full\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres", cfg.Database.Type)
				assert.Equal(t, "full", cfg.Privacy.DefaultLevel)
			},
		},
		{
			name:        "postgres without dsn",
			file:        "corgi.json",
			body:        `{"database": {"type": "postgres"}}`,
			expectError: true,
		},
		{
			name:        "unknown placement strategy",
			file:        "corgi.json",
			body:        `{"injection": {"cold_start_strategy": "spiral"}}`,
			expectError: true,
		},
		{
			name:        "unknown privacy level",
			file:        "corgi.json",
			body:        `{"privacy": {"default_level": "partial"}}`,
			expectError: true,
		},
		{
			name:        "blend ratios out of range",
			file:        "corgi.json",
			body:        `{"signals": {"weighted_ratio": 1.5}}`,
			expectError: true,
		},
		{
			name: "required services",
			file: "corgi.yaml",
			body: "server:\n  required_services: [database, upstream]\nalerts:\n  interval: 30s\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"database", "upstream"}, cfg.Server.RequiredServices)
				assert.Equal(t, 30*time.Second, cfg.Alerts.Interval)
			},
		},
		{
			name:        "unknown required service",
			file:        "corgi.json",
			body:        `{"server": {"required_services": ["elasticsearch"]}}`,
			expectError: true,
		},
		{
			name:        "unknown action weight",
			file:        "corgi.json",
			body:        `{"signals": {"weights": {"poke": 1.0}}}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.body))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CORGI_SERVER_PORT", "9191")
	t.Setenv("CORGI_INJECTION_MAX_INJECTIONS", "1")
	t.Setenv("CORGI_UPSTREAM_BASE_URL", "https://fosstodon.org")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Injection.MaxInjections)
	assert.Equal(t, "https://fosstodon.org", cfg.Upstream.BaseURL)
}

func TestProductionRequiresSalt(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CORGI_SERVER_ENVIRONMENT", "production")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("CORGI_PRIVACY_SALT", "s3cret")
	_, err = Load("")
	assert.NoError(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
