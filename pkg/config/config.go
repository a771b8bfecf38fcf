package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath       = "JAWABBOT_CONFIG"
	envTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	envBrainlyBaseURL   = "BRAINLY_BASE_URL"
)

const (
	DefaultBrainlyBaseURL = "https://brainly.co.id/graphql/id"
	DefaultUserAgent      = "Mozilla/5.0 (compatible; jawabbot/1.0)"
	DefaultParseMode      = "Markdown"

	defaultRequestTimeoutSeconds = 15
	defaultMaxRetries            = 2
	defaultReplyLimit            = 50
	defaultInlineLimit           = 20
	defaultCaptionLimit          = 1024
	defaultInlineButtonText      = "Gunakan Inline 🚀"
	defaultWelcomeText           = "Halo! Aku bisa membantu kamu mencari jawaban di Brainly. " +
		"Cukup ketikkan pertanyaanmu disini atau gunakan tombol inline dibawah! 😊"

	// Telegram rejects longer media captions and larger answerInlineQuery batches.
	maxCaptionLimit = 1024
	maxInlineLimit  = 50
)

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Corpus   CorpusConfig   `json:"corpus" yaml:"corpus"`
	Answer   AnswerConfig   `json:"answer" yaml:"answer"`
	Bot      BotConfig      `json:"bot" yaml:"bot"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Token     string `json:"token" yaml:"token"`
	ParseMode string `json:"parse_mode,omitempty" yaml:"parse_mode,omitempty"`
}

// CorpusConfig configures the Brainly GraphQL client.
type CorpusConfig struct {
	BaseURL               string `json:"base_url" yaml:"base_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	MaxRetries            int    `json:"max_retries" yaml:"max_retries"`
	UserAgent             string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	PageSize              int    `json:"page_size,omitempty" yaml:"page_size,omitempty"`
}

// AnswerConfig bounds lookups and outbound text.
type AnswerConfig struct {
	ReplyLimit   int `json:"reply_limit" yaml:"reply_limit"`
	InlineLimit  int `json:"inline_limit" yaml:"inline_limit"`
	CaptionLimit int `json:"caption_limit" yaml:"caption_limit"`
	// FallbackReply sends a short notice instead of staying silent when a reply fails.
	FallbackReply *bool `json:"fallback_reply,omitempty" yaml:"fallback_reply,omitempty"`
}

// FallbackEnabled reports whether failed replies produce a user-visible notice.
func (c AnswerConfig) FallbackEnabled() bool {
	return c.FallbackReply == nil || *c.FallbackReply
}

// BotConfig holds the fixed strings and link buttons attached to every message.
type BotConfig struct {
	Links            []LinkButton `json:"links" yaml:"links"`
	InlineButtonText string       `json:"inline_button_text,omitempty" yaml:"inline_button_text,omitempty"`
	WelcomeText      string       `json:"welcome_text,omitempty" yaml:"welcome_text,omitempty"`
}

// LinkButton is one URL button of the static keyboard.
type LinkButton struct {
	Text string `json:"text" yaml:"text"`
	URL  string `json:"url" yaml:"url"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// LoadConfig resolves the config file, unmarshals it, and applies .env and environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile reads one config file; the extension selects JSON or YAML decoding.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills unset values with the deployment defaults.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}

	if strings.TrimSpace(c.Channels.Telegram.ParseMode) == "" {
		c.Channels.Telegram.ParseMode = DefaultParseMode
	}

	if strings.TrimSpace(c.Corpus.BaseURL) == "" {
		c.Corpus.BaseURL = DefaultBrainlyBaseURL
	}
	if c.Corpus.RequestTimeoutSeconds <= 0 {
		c.Corpus.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	// Negative max_retries disables retries; zero means unset.
	if c.Corpus.MaxRetries == 0 {
		c.Corpus.MaxRetries = defaultMaxRetries
	}
	if strings.TrimSpace(c.Corpus.UserAgent) == "" {
		c.Corpus.UserAgent = DefaultUserAgent
	}

	if c.Answer.ReplyLimit <= 0 {
		c.Answer.ReplyLimit = defaultReplyLimit
	}
	if c.Answer.InlineLimit <= 0 {
		c.Answer.InlineLimit = defaultInlineLimit
	}
	if c.Answer.CaptionLimit <= 0 {
		c.Answer.CaptionLimit = defaultCaptionLimit
	}
	c.Answer.InlineLimit = min(c.Answer.InlineLimit, maxInlineLimit)
	c.Answer.CaptionLimit = min(c.Answer.CaptionLimit, maxCaptionLimit)

	if c.Bot.Links == nil {
		c.Bot.Links = []LinkButton{
			{Text: "Channel 📢", URL: "https://t.me/nekozu2"},
			{Text: "Donate ☕", URL: "https://ko-fi.com/nekozu"},
		}
	}
	if strings.TrimSpace(c.Bot.InlineButtonText) == "" {
		c.Bot.InlineButtonText = defaultInlineButtonText
	}
	if strings.TrimSpace(c.Bot.WelcomeText) == "" {
		c.Bot.WelcomeText = defaultWelcomeText
	}
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if baseURL := strings.TrimSpace(os.Getenv(envBrainlyBaseURL)); baseURL != "" {
		cfg.Corpus.BaseURL = baseURL
	}
}

// loadDotEnv loads dir/.env without overriding variables already set in the process.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	return nil
}

// findConfigPath resolves the active config file location.
//
// Precedence is JAWABBOT_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := make([]string, 0, 6)
	for _, dir := range []string{cwd, filepath.Join(cwd, "config")} {
		for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config file not found (checked %s)", strings.Join(candidates, ", "))
}
