// Package config loads client configuration from defaults, an optional YAML
// file, the nearest .env file and the process environment (in that order).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultAPIBaseURL is used when nothing else configures the backend.
const DefaultAPIBaseURL = "http://localhost:8000/api"

// Config is the full client configuration.
type Config struct {
	// APIBaseURL is the backend API root, e.g. https://host/api
	APIBaseURL string `yaml:"api_base_url"`

	// TokenFile is where the bearer token is persisted
	TokenFile string `yaml:"token_file"`

	// HTTPTimeout bounds non-streaming requests
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// StreamIdleTimeout ends a stream that receives no bytes for this long (0 disables)
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`

	// SearchLimit is the default number of documents per search
	SearchLimit int `yaml:"search_limit"`

	// CacheTTL bounds how long filter metadata is cached
	CacheTTL time.Duration `yaml:"cache_ttl"`

	Log    LogConfig    `yaml:"log"`
	Google GoogleConfig `yaml:"google"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// GoogleConfig holds the OAuth client used for federated sign-in.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		APIBaseURL:  DefaultAPIBaseURL,
		TokenFile:   defaultTokenFile(),
		HTTPTimeout: 30 * time.Second,
		SearchLimit: 20,
		CacheTTL:    5 * time.Minute,
		Log: LogConfig{
			Level: "info",
		},
		Google: GoogleConfig{
			RedirectURL: "http://localhost:3000/api/auth/callback/google",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file at a
// non-empty path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	LoadEnv()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base_url must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative")
	}
	if c.StreamIdleTimeout < 0 {
		return fmt.Errorf("stream_idle_timeout must not be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	if c.SearchLimit < 1 || c.SearchLimit > 100 {
		return fmt.Errorf("search_limit must be between 1 and 100, got %d", c.SearchLimit)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := firstEnv("DOCSEARCH_API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("DOCSEARCH_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("DOCSEARCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DOCSEARCH_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_REDIRECT_URI"); v != "" {
		c.Google.RedirectURL = v
	}

	durations := map[string]*time.Duration{
		"DOCSEARCH_HTTP_TIMEOUT":        &c.HTTPTimeout,
		"DOCSEARCH_STREAM_IDLE_TIMEOUT": &c.StreamIdleTimeout,
		"DOCSEARCH_CACHE_TTL":           &c.CacheTTL,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v := os.Getenv("DOCSEARCH_SEARCH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOCSEARCH_SEARCH_LIMIT: %w", err)
		}
		c.SearchLimit = n
	}
	return nil
}

// LoadEnv searches for a .env file starting from the current directory
// and walking up the directory tree. It loads the first .env file found.
// If no .env file is found, it silently continues (using system env vars).
// Variables already set in the environment are never overridden.
func LoadEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "docsearch", "token.yaml")
}
