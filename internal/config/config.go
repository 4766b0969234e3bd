package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	TimeRange       models.TimeRange `mapstructure:"time_range"`
	Languages       []string         `mapstructure:"languages"`
	Concurrency     int              `mapstructure:"concurrency"`
	ConfidenceFloor float64          `mapstructure:"confidence_floor"`
	Strict          bool             `mapstructure:"strict"`

	SnapshotPath string `mapstructure:"snapshot_path"`
	AnalysisPath string `mapstructure:"analysis_path"`

	BaseURL        string        `mapstructure:"base_url"`
	SessionCookie  string        `mapstructure:"session_cookie"`
	ProxyURL       string        `mapstructure:"proxy_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	TopTopics int `mapstructure:"top_topics"`
	TopRepos  int `mapstructure:"top_repos"`

	LogLevel string `mapstructure:"log_level"`

	Surreal SurrealConfig `mapstructure:"surreal"`
	LLM     LLMConfig     `mapstructure:"llm"`
}

type SurrealConfig struct {
	URL  string `mapstructure:"url"`
	NS   string `mapstructure:"ns"`
	DB   string `mapstructure:"db"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
}

// Enabled reports whether a SurrealDB endpoint is configured.
func (s SurrealConfig) Enabled() bool {
	return s.URL != ""
}

type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

var defaults = map[string]any{
	"time_range":       string(models.Daily),
	"languages":        []string{"python", "go", "c", "c++", "javascript", "typescript"},
	"concurrency":      10,
	"confidence_floor": 0.10,
	"strict":           false,
	"snapshot_path":    "trending.json",
	"analysis_path":    "topics.json",
	"base_url":         "https://github.com",
	"session_cookie":   "",
	"proxy_url":        "",
	"request_timeout":  30 * time.Second,
	"top_topics":       5,
	"top_repos":        5,
	"log_level":        "info",
	"surreal.url":      "",
	"surreal.ns":       "",
	"surreal.db":       "",
	"surreal.user":     "",
	"surreal.pass":     "",
	"llm.base_url":     "https://api.openai.com/v1",
	"llm.api_key":      "",
	"llm.model":        "gpt-4o-mini",
}

// Unprefixed variables still honored after the REPO_PULSE_ form.
var legacyEnv = map[string]string{
	"surreal.url":  "SURREAL_URL",
	"surreal.ns":   "SURREAL_NS",
	"surreal.db":   "SURREAL_DB",
	"surreal.user": "SURREAL_USER",
	"surreal.pass": "SURREAL_PASS",
	"llm.base_url": "LLM_BASE_URL",
	"llm.api_key":  "LLM_API_KEY",
	"llm.model":    "LLM_MODEL",
}

// Load reads .env, the environment, an optional config file and any flags
// in fs. Flag "foo-bar" overrides key "foo_bar".
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("REPO_PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, env := range legacyEnv {
		prefixed := "REPO_PULSE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("binding flags: %w", bindErr)
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// The SDK appends /rpc automatically
	cfg.Surreal.URL = strings.TrimSuffix(cfg.Surreal.URL, "/rpc")
	cfg.Surreal.URL = strings.TrimSuffix(cfg.Surreal.URL, "/")
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes the time range and rejects settings the pipeline
// cannot run with.
func (c *Config) Validate() error {
	var errs []error

	tr, err := models.ParseTimeRange(string(c.TimeRange))
	if err != nil {
		errs = append(errs, err)
	} else {
		c.TimeRange = tr
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor >= 1 {
		errs = append(errs, fmt.Errorf("confidence_floor %.2f is outside [0, 1)", c.ConfidenceFloor))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout %s is negative", c.RequestTimeout))
	}
	if c.SnapshotPath == "" {
		errs = append(errs, errors.New("snapshot_path is empty"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}
