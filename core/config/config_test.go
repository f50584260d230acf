package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaultsRunMode(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"missing token":   {},
		"webhook no url":  {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}},
		"webhook no port": {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: WebhookConfig{URL: "https://x", Listen: "0.0.0.0"}},
		"negative poll":   {Telegram: TelegramConfig{Token: "t", LongPollTimeoutSeconds: -1}},
		"unknown mode":    {Telegram: TelegramConfig{Token: "t", RunMode: "smoke"}},
		"bad exclusion":   {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
		"negative sender": {Telegram: TelegramConfig{Token: "t"}, Sender: SenderConfig{Workers: -1}},
	}
	for name, cfg := range cases {
		cfg := cfg
		if err := Normalize(&cfg); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", name, err)
		}
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("telegram:\n  token: from-file\nrate_limit:\n  exclude_updates: [\" Callback \"]\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if got := cfg.RateLimit.ExcludeUpdates[0]; got != UpdateCallback {
		t.Fatalf("exclude = %q, want %q", got, UpdateCallback)
	}
}
