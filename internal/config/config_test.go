package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the per-user dirs at a temp dir so a developer's real config is never read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ghsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultSessionCookieName, cfg.SessionCookieName)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.FileUsed)
	assert.Equal(t, DefaultBaseURL+"/auth/github", cfg.OAuthStartURL())
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
base_url: https://file.example.com/api/
page_size: 40
http_timeout: 5s
session: from-file
`)

	t.Setenv("GHSYNC_PAGE_SIZE", "60")
	t.Setenv("GHSYNC_SESSION", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("session", "", "")
	flags.Int("page-size", 0, "")
	flags.String("base-url", "", "")
	require.NoError(t, flags.Parse([]string{"--session", "from-flag"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.FileUsed)
	assert.Equal(t, "https://file.example.com/api", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 60, cfg.PageSize, "env beats file")
	assert.Equal(t, "from-flag", cfg.Session, "flag beats env")
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}

func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("GHSYNC_BASE_URL", "https://env.example.com/api")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "http://flag-default", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", cfg.BaseURL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"relative base url", map[string]string{"GHSYNC_BASE_URL": "/api"}},
		{"bad scheme", map[string]string{"GHSYNC_BASE_URL": "ftp://x/api"}},
		{"zero page size", map[string]string{"GHSYNC_PAGE_SIZE": "0"}},
		{"bad log format", map[string]string{"GHSYNC_LOG_FORMAT": "xml"}},
		{"bad timezone", map[string]string{"GHSYNC_TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestConfig_OAuthStartURLOverride(t *testing.T) {
	cfg := &Config{BaseURL: "http://x/api", AuthURL: "http://x/oauth"}
	assert.Equal(t, "http://x/oauth", cfg.OAuthStartURL())
}
