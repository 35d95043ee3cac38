package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "scrape"}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryMinDelay, cfg.RetryMinDelay)
	assert.Equal(t, DefaultRetryMaxDelay, cfg.RetryMaxDelay)
	assert.Equal(t, DefaultAttemptTimeout, cfg.AttemptTimeout)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL)
	assert.True(t, cfg.BrowserHeadless)
	assert.Empty(t, cfg.ClearBaseURL)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SCRAPE_MAX_RETRIES", "5")
	t.Setenv("SCRAPE_CLEAR_BASE_URL", "http://clear.test")
	t.Setenv("SCRAPE_ATTEMPT_TIMEOUT", "10s")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "http://clear.test", cfg.ClearBaseURL)
	assert.Equal(t, 10*time.Second, cfg.AttemptTimeout)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrape.yaml")
	content := "proxy: socks5://127.0.0.1:1080\nmax_retries: 4\nretry_min_delay: 100ms\nretry_max_delay: 200ms\nuser_agent: from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cmd := newCmd(t, "--config", path, "--user-agent", "from-flag", "-v", "--retries", "2")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Proxy)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryMinDelay)
	assert.Equal(t, "from-flag", cfg.UserAgent)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	cmd := newCmd(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load(cmd)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad timeout flag", []string{"--timeout", "soon"}, nil},
		{"zero retries", []string{"--retries", "0"}, nil},
		{"bad proxy", []string{"--proxy", "ftp://x:21"}, nil},
		{"inverted delays", nil, map[string]string{"SCRAPE_RETRY_MIN_DELAY": "5s", "SCRAPE_RETRY_MAX_DELAY": "1s"}},
		{"bad level", nil, map[string]string{"SCRAPE_LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(newCmd(t, tt.args...))
			assert.Error(t, err)
		})
	}
}
