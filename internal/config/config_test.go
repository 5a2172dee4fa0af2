package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesRateLimitDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit.Chat.MaxRequests != 20 || cfg.RateLimit.Chat.Window().Seconds() != 60 {
		t.Errorf("chat = %+v", cfg.RateLimit.Chat)
	}
	if cfg.RateLimit.Blog.MaxRequests != 3 || cfg.RateLimit.Blog.WindowSeconds != 3600 {
		t.Errorf("blog = %+v", cfg.RateLimit.Blog)
	}
	if cfg.Server.TrustedProxies != nil {
		t.Errorf("trusted proxies = %v, want none", cfg.Server.TrustedProxies)
	}
}

func TestLoadRejectsNonPositiveLimits(t *testing.T) {
	tests := map[string]string{
		"zero requests":   "rate_limit:\n  lead:\n    max_requests: 0\n",
		"negative window": "rate_limit:\n  chat:\n    window_seconds: -5\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if err == nil || !strings.Contains(err.Error(), "rate_limit.") {
				t.Fatalf("err = %v", err)
			}
		})
	}
}
