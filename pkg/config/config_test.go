package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "channels": {"telegram": {"enabled": true, "token": "file-token"}},
	  "corpus": {"base_url": "http://127.0.0.1:9999/graphql", "max_retries": 4},
	  "answer": {"reply_limit": 10, "fallback_reply": false},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)
	t.Setenv(envTelegramBotToken, "")
	t.Setenv(envBrainlyBaseURL, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.Channels.Telegram.Token != "file-token" {
		t.Fatalf("telegram.token = %q, want file-token", cfg.Channels.Telegram.Token)
	}
	if cfg.Corpus.MaxRetries != 4 {
		t.Fatalf("corpus.max_retries = %d, want 4", cfg.Corpus.MaxRetries)
	}
	if cfg.Answer.ReplyLimit != 10 {
		t.Fatalf("answer.reply_limit = %d, want 10", cfg.Answer.ReplyLimit)
	}
	if cfg.Answer.InlineLimit != defaultInlineLimit {
		t.Fatalf("answer.inline_limit = %d, want default %d", cfg.Answer.InlineLimit, defaultInlineLimit)
	}
	if cfg.Answer.FallbackEnabled() {
		t.Fatal("fallback_reply = true, want false from file")
	}
}

func TestLoadFileYAML(t *testing.T) {
	t.Setenv(envTelegramBotToken, "")
	t.Setenv(envBrainlyBaseURL, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
channels:
  telegram:
    enabled: true
    parse_mode: MarkdownV2
bot:
  links:
    - text: Repo
      url: https://example.com/repo
answer:
  caption_limit: 900
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if cfg.Channels.Telegram.ParseMode != "MarkdownV2" {
		t.Fatalf("parse_mode = %q, want MarkdownV2", cfg.Channels.Telegram.ParseMode)
	}
	if len(cfg.Bot.Links) != 1 || cfg.Bot.Links[0].URL != "https://example.com/repo" {
		t.Fatalf("bot.links = %+v", cfg.Bot.Links)
	}
	if cfg.Answer.CaptionLimit != 900 {
		t.Fatalf("caption_limit = %d, want 900", cfg.Answer.CaptionLimit)
	}
	if cfg.Corpus.BaseURL != DefaultBrainlyBaseURL {
		t.Fatalf("corpus.base_url = %q, want default", cfg.Corpus.BaseURL)
	}
}

func TestLoadFileDotEnvAndOverrides(t *testing.T) {
	t.Setenv(envTelegramBotToken, "")
	t.Setenv(envBrainlyBaseURL, "http://override/graphql")
	// godotenv sets the variable through os.Setenv; restore it after the test.
	t.Cleanup(func() { _ = os.Unsetenv(envTelegramBotToken) })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TELEGRAM_BOT_TOKEN=dotenv-token\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"channels": {"telegram": {"enabled": true}}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	// godotenv does not override variables that are already set, even to "".
	_ = os.Unsetenv(envTelegramBotToken)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if cfg.Channels.Telegram.Token != "dotenv-token" {
		t.Fatalf("telegram.token = %q, want dotenv-token", cfg.Channels.Telegram.Token)
	}
	if cfg.Corpus.BaseURL != "http://override/graphql" {
		t.Fatalf("corpus.base_url = %q, want env override", cfg.Corpus.BaseURL)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Channels.Telegram.ParseMode != DefaultParseMode {
		t.Fatalf("parse_mode = %q", cfg.Channels.Telegram.ParseMode)
	}
	if cfg.Answer.ReplyLimit != 50 || cfg.Answer.InlineLimit != 20 || cfg.Answer.CaptionLimit != 1024 {
		t.Fatalf("answer defaults = %+v", cfg.Answer)
	}
	if len(cfg.Bot.Links) != 2 {
		t.Fatalf("bot.links = %+v, want two default links", cfg.Bot.Links)
	}
	if !cfg.Answer.FallbackEnabled() {
		t.Fatal("fallback should default to enabled")
	}
}

func TestApplyDefaultsCapsTelegramLimits(t *testing.T) {
	t.Parallel()

	cfg := &Config{Answer: AnswerConfig{ReplyLimit: 80, InlineLimit: 200, CaptionLimit: 4096}}
	cfg.ApplyDefaults()

	if cfg.Answer.InlineLimit != 50 {
		t.Fatalf("inline_limit = %d, want capped at 50", cfg.Answer.InlineLimit)
	}
	if cfg.Answer.CaptionLimit != 1024 {
		t.Fatalf("caption_limit = %d, want capped at 1024", cfg.Answer.CaptionLimit)
	}
	if cfg.Answer.ReplyLimit != 80 {
		t.Fatalf("reply_limit = %d, want 80 untouched", cfg.Answer.ReplyLimit)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}
