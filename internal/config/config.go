// Package config loads ghsync settings from defaults, an optional YAML file,
// GHSYNC_* environment variables and explicitly-set command line flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultBaseURL           = "http://localhost:3000/api"
	DefaultSessionCookieName = "connect.sid"
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultPageSize          = 100
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"

	envPrefix = "GHSYNC_"
	appDir    = "ghsync"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all ghsync configuration.
type Config struct {
	BaseURL           string        `koanf:"base_url"`
	AuthURL           string        `koanf:"auth_url"`
	SessionCookieName string        `koanf:"session_cookie_name"`
	Session           string        `koanf:"session"`
	HTTPTimeout       time.Duration `koanf:"http_timeout"`
	PrefsPath         string        `koanf:"prefs_path"`
	LogFile           string        `koanf:"log_file"`
	LogLevel          string        `koanf:"log_level"`
	LogFormat         string        `koanf:"log_format"`
	PageSize          int           `koanf:"page_size"`
	Timezone          string        `koanf:"timezone"`

	// FileUsed is the config file that was read, empty when none was found.
	FileUsed string `koanf:"-"`
}

// OAuthStartURL returns the backend URL that begins the GitHub OAuth flow.
func (c *Config) OAuthStartURL() string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/auth/github"
}

// Location resolves Timezone, defaulting to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks the values that would otherwise fail late and confusingly.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base_url %q must be an absolute http(s) URL", ErrInvalidConfig, c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base_url scheme %q not supported", ErrInvalidConfig, u.Scheme)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http_timeout must not be negative", ErrInvalidConfig)
	}
	if c.SessionCookieName == "" {
		return fmt.Errorf("%w: session_cookie_name must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
		}
	}
	return nil
}

// defaultPath returns the per-user config file path ($XDG_CONFIG_HOME/ghsync/config.yaml).
func defaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, "config.yaml")
}

// defaultStateFile returns a file under the per-user cache dir, falling back to the temp dir.
func defaultStateFile(name string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appDir, name)
}

// Load reads configuration. cfgFile may be empty, in which case the default
// per-user path is used if it exists. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"base_url":            DefaultBaseURL,
		"session_cookie_name": DefaultSessionCookieName,
		"http_timeout":        DefaultHTTPTimeout.String(),
		"prefs_path":          defaultStateFile("prefs.db"),
		"log_file":            defaultStateFile("ghsync.log"),
		"log_level":           DefaultLogLevel,
		"log_format":          DefaultLogFormat,
		"page_size":           DefaultPageSize,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	fileUsed := cfgFile
	if fileUsed == "" {
		if p := defaultPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				fileUsed = p
			}
		}
	}
	if fileUsed != "" {
		if err := k.Load(file.Provider(fileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", fileUsed, err)
		}
	}

	// GHSYNC_BASE_URL -> base_url
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "base", "api":
				key = "base_url"
			case "config":
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = fileUsed
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
