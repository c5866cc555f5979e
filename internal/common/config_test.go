package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, 16, config.Extractor.FragmentConcurrency)
	assert.Equal(t, 15, config.Extractor.Retries)
	assert.Equal(t, 15, config.Extractor.FragmentRetries)
	assert.Equal(t, "@every 1h", config.Reaper.OutputSchedule)
	assert.Equal(t, "@every 30m", config.Reaper.CookieSchedule)
	assert.Equal(t, 2048, config.Cookies.MaxSizeKB)
	assert.Contains(t, config.Browser.UserAgent, "Mozilla/5.0")
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TUBEFETCH_SERVER_PORT", "")

	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 8080

[downloads]
output_dir = "/srv/base"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[downloads]
output_dir = "/srv/override"

[browser]
enabled = false
user_agent = "Mozilla/5.0 (X11; Linux x86_64) TestAgent"
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "/srv/override", config.Downloads.OutputDir)
	assert.False(t, config.Browser.Enabled)
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64) TestAgent", config.Browser.UserAgent)
	// Untouched defaults survive the merge
	assert.Equal(t, "yt-dlp", config.Extractor.Binary)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEBUG", "true")
	t.Setenv("PROXY_URL", "http://proxy.local:3128")
	t.Setenv("YOUTUBE_COOKIES", "# Netscape HTTP Cookie File")
	t.Setenv("TUBEFETCH_LOG_OUTPUT", "stdout, file")
	t.Setenv("TUBEFETCH_BROWSER_USER_AGENT", "Mozilla/5.0 EnvAgent")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "http://proxy.local:3128", config.Extractor.Proxy)
	assert.Equal(t, "# Netscape HTTP Cookie File", config.Cookies.Inline)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.Equal(t, "Mozilla/5.0 EnvAgent", config.Browser.UserAgent)
}

func TestApplyEnvOverrides_PrefixedPortWins(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TUBEFETCH_SERVER_PORT", "9100")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, 9100, config.Server.Port)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 5000, config.Server.Port)

	ApplyFlagOverrides(config, 7000, "127.0.0.1")
	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad duration", func(c *Config) { c.Cookies.TTL = "half an hour" }, true},
		{"bad schedule", func(c *Config) { c.Reaper.OutputSchedule = "sometimes" }, true},
		{"cron schedule", func(c *Config) { c.Reaper.OutputSchedule = "0 * * * *" }, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad cookie limit", func(c *Config) { c.Cookies.MaxSizeKB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	assert.Equal(t, 30*time.Minute, MustDuration("30m", time.Hour))
	assert.Equal(t, time.Hour, MustDuration("", time.Hour))
	assert.Equal(t, time.Hour, MustDuration("-5m", time.Hour))
}
