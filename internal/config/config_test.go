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

func TestLoadWithFileOverrides(t *testing.T) {
	path := writeConfig(t, `
watch:
  sources:
    - https://example.com/feed
    - https://example.org/feed
  keyword: discord
  post_limit: 10
  snippet_max_chars: 120
  no_match_min_hours: 12
extract:
  marker: __FEED_STATE__
fetch:
  mode: static
  user_agent: test-agent
  nav_timeout_seconds: 20
notify:
  match_webhook_url: https://hooks.example.com/match
  no_match_webhook_url: https://hooks.example.com/quiet
  mail:
    api_key: key
    from_addr: bot@example.com
    recipients:
      - ops@example.com
state:
  path: /tmp/feedwatch-state.json
logging:
  development: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Watch.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Watch.Sources))
	}
	if cfg.Watch.Keyword != "discord" {
		t.Fatalf("keyword not loaded: %q", cfg.Watch.Keyword)
	}
	if cfg.Watch.NoMatchMinHours != 12 {
		t.Fatalf("no_match_min_hours not loaded: %v", cfg.Watch.NoMatchMinHours)
	}
	if cfg.Extract.Marker != "__FEED_STATE__" {
		t.Fatalf("marker not loaded: %q", cfg.Extract.Marker)
	}
	if cfg.Fetch.Mode != "static" {
		t.Fatalf("fetch mode not loaded: %q", cfg.Fetch.Mode)
	}
	if cfg.Notify.Mail.Recipients[0] != "ops@example.com" {
		t.Fatalf("recipients not loaded: %v", cfg.Notify.Mail.Recipients)
	}
	if cfg.Logging.Development {
		t.Fatal("logging.development override not applied")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
watch:
  sources:
    - https://example.com/feed
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Watch.PostLimit != 25 {
		t.Fatalf("default post_limit: %d", cfg.Watch.PostLimit)
	}
	if cfg.Watch.NoMatchMinHours != 24 {
		t.Fatalf("default no_match_min_hours: %v", cfg.Watch.NoMatchMinHours)
	}
	if cfg.Extract.Marker != "__INITIAL_DATA__" {
		t.Fatalf("default marker: %q", cfg.Extract.Marker)
	}
	if cfg.Fetch.Mode != "headless" {
		t.Fatalf("default fetch mode: %q", cfg.Fetch.Mode)
	}
	if cfg.State.Path != "data/state.json" {
		t.Fatalf("default state path: %q", cfg.State.Path)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no sources",
			body: "watch:\n  keyword: x\n",
			want: "watch.sources",
		},
		{
			name: "bad fetch mode",
			body: "watch:\n  sources: [https://example.com]\nfetch:\n  mode: carrier-pigeon\n",
			want: "fetch.mode",
		},
		{
			name: "zero post limit",
			body: "watch:\n  sources: [https://example.com]\n  post_limit: 0\n",
			want: "watch.post_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q should mention %q", err, tt.want)
			}
		})
	}
}
