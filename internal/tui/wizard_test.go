package tui

import (
	"testing"

	"github.com/fernandocchaves/tabtalk/internal/config"
)

func TestHasUserChanges(t *testing.T) {
	cfg := config.DefaultConfig()
	if hasUserChanges(cfg) {
		t.Error("default config should not count as user-modified")
	}

	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test"}
	if !hasUserChanges(cfg) {
		t.Error("config with a provider key should count as user-modified")
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "***"},
		{"short", "***"},
		{"sk-proj-abcdefghijklmnop", "sk-proj..." + "mnop"},
	}

	for _, tt := range tests {
		if got := maskAPIKey(tt.key); got != tt.want {
			t.Errorf("maskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetConfiguredProviders(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk-x"}
	cfg.Providers["groq"] = config.ProviderConfig{APIKey: ""}

	got := getConfiguredProviders(cfg)
	if len(got) != 1 || got[0] != "openai" {
		t.Errorf("expected [openai], got %v", got)
	}
}
