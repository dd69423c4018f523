// Package config loads service settings from defaults, an optional config
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every override, e.g. DIGEST_FETCH_TIMEOUT.
const EnvPrefix = "DIGEST"

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

type SearchConfig struct {
	// Provider is "serpapi" or "rss".
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Language string        `mapstructure:"language"`
	Country  string        `mapstructure:"country"`
	// RPS paces provider requests; 0 disables pacing.
	RPS    float64 `mapstructure:"rps"`
	Jitter float64 `mapstructure:"jitter"`
	// CacheAddr enables the Redis result cache when set.
	CacheAddr string        `mapstructure:"cache_addr"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRedirects  int           `mapstructure:"max_redirects"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	MaxChars      int           `mapstructure:"max_chars"`
	MaxEnrich     int           `mapstructure:"max_enrich"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	InsecureTLS   bool          `mapstructure:"insecure_tls"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	RobotsAgent   string        `mapstructure:"robots_agent"`
	UserAgents    []string      `mapstructure:"user_agents"`
	Proxies       []string      `mapstructure:"proxies"`
	ProxyFile     string        `mapstructure:"proxy_file"`
}

type SummarizeConfig struct {
	// Backend is "openai" or "anthropic".
	Backend      string        `mapstructure:"backend"`
	OpenAIKey    string        `mapstructure:"openai_api_key"`
	AnthropicKey string        `mapstructure:"anthropic_api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PromptBudget int           `mapstructure:"prompt_budget"`
}

type PipelineConfig struct {
	Window      string `mapstructure:"window"`
	MaxArticles int    `mapstructure:"max_articles"`
}

type StorageConfig struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// MetricsAddr serves /metrics for the schedule command.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

// APIKey returns the key for the configured summarizer backend.
func (s SummarizeConfig) APIKey() string {
	if strings.EqualFold(s.Backend, "anthropic") {
		return s.AnthropicKey
	}
	return s.OpenAIKey
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.language", "en")
	v.SetDefault("search.country", "us")
	v.SetDefault("search.rps", 0.0)
	v.SetDefault("search.jitter", 0.0)
	v.SetDefault("search.cache_addr", "")
	v.SetDefault("search.cache_ttl", 15*time.Minute)

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.max_body_bytes", 4<<20)
	v.SetDefault("fetch.max_chars", 3000)
	v.SetDefault("fetch.max_enrich", 5)
	v.SetDefault("fetch.fingerprint", "go")
	v.SetDefault("fetch.insecure_tls", false)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.robots_agent", "DigestBot")
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxy_file", "")

	v.SetDefault("summarize.backend", "openai")
	v.SetDefault("summarize.openai_api_key", "")
	v.SetDefault("summarize.anthropic_api_key", "")
	v.SetDefault("summarize.base_url", "")
	v.SetDefault("summarize.model", "")
	v.SetDefault("summarize.max_tokens", 1000)
	v.SetDefault("summarize.timeout", 60*time.Second)
	v.SetDefault("summarize.prompt_budget", 24000)

	v.SetDefault("pipeline.window", news.DefaultWindow)
	v.SetDefault("pipeline.max_articles", 10)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "file:digest.db")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.metrics_addr", "")

	v.SetDefault("schedule.spec", "0 0 7 * * *")
}

// Load reads configuration. path may be empty; a missing .env file is not
// an error. The conventional key variables SERP_API_KEY, OPENAI_API_KEY and
// ANTHROPIC_API_KEY are honoured alongside their DIGEST_ forms.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %w", news.ErrConfiguration, err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", news.ErrConfiguration, path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"search.api_key":              {"DIGEST_SEARCH_API_KEY", "SERP_API_KEY", "SERPAPI_KEY"},
		"summarize.openai_api_key":    {"DIGEST_SUMMARIZE_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"summarize.anthropic_api_key": {"DIGEST_SUMMARIZE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"storage.dsn":                 {"DIGEST_STORAGE_DSN", "DATABASE_URL"},
		"search.cache_addr":           {"DIGEST_SEARCH_CACHE_ADDR", "REDIS_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %w", news.ErrConfiguration, key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", news.ErrConfiguration, err)
	}
	return &cfg, nil
}

// Validate reports out-of-range or unknown values. Missing API keys are not
// checked here; the components that need them report that themselves.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Search.Provider) {
	case "serpapi", "rss":
	default:
		bad("search.provider %q must be serpapi or rss", c.Search.Provider)
	}
	if c.Search.RPS < 0 {
		bad("search.rps must not be negative")
	}
	if c.Search.Jitter < 0 || c.Search.Jitter > 1 {
		bad("search.jitter must be between 0 and 1")
	}
	if c.Fetch.Timeout <= 0 {
		bad("fetch.timeout must be positive")
	}
	if c.Fetch.MaxEnrich < 1 {
		bad("fetch.max_enrich must be at least 1")
	}
	if c.Fetch.MaxChars < 1 {
		bad("fetch.max_chars must be at least 1")
	}
	if c.Fetch.MaxBodyBytes < 1 {
		bad("fetch.max_body_bytes must be at least 1")
	}
	switch strings.ToLower(c.Summarize.Backend) {
	case "openai", "anthropic":
	default:
		bad("summarize.backend %q must be openai or anthropic", c.Summarize.Backend)
	}
	if !news.ValidWindow(c.Pipeline.Window) {
		bad("pipeline.window %q must be between 1d and 7d", c.Pipeline.Window)
	}
	if c.Pipeline.MaxArticles < news.MinResultCap || c.Pipeline.MaxArticles > news.MaxResultCap {
		bad("pipeline.max_articles must be between %d and %d", news.MinResultCap, news.MaxResultCap)
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			bad("storage.dsn is required for driver %s", c.Storage.Driver)
		}
	case "none", "":
	default:
		bad("storage.driver %q must be sqlite, postgres or none", c.Storage.Driver)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", news.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q must be debug, info, warn or error", s)
	}
	return level, nil
}
