package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Server    ServerConfig    `toml:"server"`
	Sources   SourcesConfig   `toml:"sources"`
	Filters   FiltersConfig   `toml:"filters"`
	Email     EmailConfig     `toml:"email"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Log       LogConfig       `toml:"log"`
}

// LLMConfig holds language-model backend settings.
type LLMConfig struct {
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the per-call deadline for LLM requests.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EmbeddingConfig holds embedding model settings. The model runs on the same
// backend as the LLM (the base URL is shared for the ollama provider).
type EmbeddingConfig struct {
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `toml:"port"`
}

// SourcesConfig holds source adapter settings.
type SourcesConfig struct {
	HNLookbackHours     int      `toml:"hn_lookback_hours"`
	RSSLookbackHours    int      `toml:"rss_lookback_hours"`
	RedditLookbackHours int      `toml:"reddit_lookback_hours"`
	RSSFeeds            []string `toml:"rss_feeds"`
	Subreddits          []string `toml:"subreddits"`
	// ExtractContent fetches readable article text for link-only stories so
	// the semantic filters have a body to score. The default config file
	// enables it; a hand-edited config that omits the key disables it (TOML
	// cannot distinguish a missing bool from an explicit false).
	ExtractContent bool `toml:"extract_content"`
}

// FiltersConfig holds the semantic gate thresholds.
type FiltersConfig struct {
	SemanticThreshold       float64 `toml:"semantic_threshold"`
	PrefilterThreshold      float64 `toml:"prefilter_threshold"`
	HighEngagementThreshold int     `toml:"high_engagement_threshold"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	From     string `toml:"from"`
	To       string `toml:"to"`
	Password string `toml:"password"`
}

// TelegramConfig holds Telegram delivery settings.
type TelegramConfig struct {
	Enabled   bool   `toml:"enabled"`
	BotToken  string `toml:"bot_token"`
	ChatID    string `toml:"chat_id"`
	ChunkSize int    `toml:"chunk_size"`
}

// LogConfig holds logging settings. When File is non-empty, logs are written
// both as text to stderr and as JSON to the file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// defaultRSSFeeds are the feeds tracked when the config does not list any.
var defaultRSSFeeds = []string{
	"https://techcrunch.com/category/artificial-intelligence/feed/",
	"https://www.theverge.com/rss/artificial-intelligence/index.xml",
	"https://www.wired.com/feed/category/ai/latest/rss",
	"https://venturebeat.com/category/ai/feed/",
	"https://www.technologyreview.com/topic/artificial-intelligence/feed",
	"https://openai.com/blog/rss.xml",
	"https://www.anthropic.com/index.xml",
	"https://deepmind.google/blog/rss.xml",
	"https://aws.amazon.com/blogs/machine-learning/feed/",
}

// defaultSubreddits are the subreddit feeds tracked by default.
var defaultSubreddits = []string{
	"https://www.reddit.com/r/MachineLearning/.rss",
	"https://www.reddit.com/r/LocalLLaMA/.rss",
}

const defaultConfigContent = `[llm]
provider = "ollama"               # "ollama", "openai", or "anthropic"
base_url = "http://localhost:11434"
model = "llama3.1"
api_key = ""                      # required for openai/anthropic (or set SIFT_LLM_API_KEY)
timeout_seconds = 120

[embedding]
model = "all-minilm:l6-v2"
dimension = 384

[server]
port = 8080

[sources]
hn_lookback_hours = 24
rss_lookback_hours = 168
reddit_lookback_hours = 24
extract_content = true
# rss_feeds and subreddits fall back to the built-in defaults when omitted.

[filters]
semantic_threshold = 0.15         # persona gate, very lenient
prefilter_threshold = 0.35        # shared ingestion gate
high_engagement_threshold = 100   # raw score that bypasses the prefilter

[email]
enabled = false
smtp_host = "smtp.gmail.com"
smtp_port = 465
from = ""
to = ""
password = ""                     # or set SIFT_SMTP_PASSWORD

[telegram]
enabled = false
bot_token = ""                    # or set SIFT_TELEGRAM_TOKEN
chat_id = ""
chunk_size = 4000

[log]
level = "info"
file = ""                         # optional JSON log file
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
// This catches cases like "port = 0" which would otherwise be silently
// replaced by the default value.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("llm", "timeout_seconds") {
		if cfg.LLM.TimeoutSeconds < 1 {
			return fmt.Errorf("invalid llm.timeout_seconds %d: must be >= 1", cfg.LLM.TimeoutSeconds)
		}
	}
	if md.IsDefined("embedding", "dimension") {
		if cfg.Embedding.Dimension < 1 {
			return fmt.Errorf("invalid embedding.dimension %d: must be >= 1", cfg.Embedding.Dimension)
		}
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm:l6-v2"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Sources.HNLookbackHours == 0 {
		cfg.Sources.HNLookbackHours = 24
	}
	if cfg.Sources.RSSLookbackHours == 0 {
		cfg.Sources.RSSLookbackHours = 168
	}
	if cfg.Sources.RedditLookbackHours == 0 {
		cfg.Sources.RedditLookbackHours = 24
	}
	if len(cfg.Sources.RSSFeeds) == 0 {
		cfg.Sources.RSSFeeds = defaultRSSFeeds
	}
	if len(cfg.Sources.Subreddits) == 0 {
		cfg.Sources.Subreddits = defaultSubreddits
	}
	if cfg.Filters.SemanticThreshold == 0 {
		cfg.Filters.SemanticThreshold = 0.15
	}
	if cfg.Filters.PrefilterThreshold == 0 {
		cfg.Filters.PrefilterThreshold = 0.35
	}
	if cfg.Filters.HighEngagementThreshold == 0 {
		cfg.Filters.HighEngagementThreshold = 100
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 465
	}
	if cfg.Telegram.ChunkSize == 0 {
		cfg.Telegram.ChunkSize = 4000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SIFT_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SIFT_SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("SIFT_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "ollama", "openai", "anthropic":
		// valid
	default:
		return fmt.Errorf("invalid llm.provider %q: must be \"ollama\", \"openai\", or \"anthropic\"", cfg.LLM.Provider)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	if cfg.LLM.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid llm.timeout_seconds %d: must be >= 1", cfg.LLM.TimeoutSeconds)
	}

	if cfg.Embedding.Dimension < 1 {
		return fmt.Errorf("invalid embedding.dimension %d: must be >= 1", cfg.Embedding.Dimension)
	}

	if cfg.LLM.Provider != "ollama" && cfg.LLM.APIKey == "" {
		slog.Warn("llm.api_key is empty: set it in the config file or via SIFT_LLM_API_KEY environment variable")
	}

	if cfg.Email.Enabled && (cfg.Email.From == "" || cfg.Email.To == "") {
		return fmt.Errorf("email delivery enabled but email.from or email.to is empty")
	}

	if cfg.Telegram.Enabled && (cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "") {
		return fmt.Errorf("telegram delivery enabled but telegram.bot_token or telegram.chat_id is empty")
	}

	return nil
}
