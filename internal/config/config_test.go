package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("GRACEBOT_BOT_TOKEN", "123:abc")
	t.Setenv("GRACEBOT_WEBHOOK_SECRET", "s3cret")
	t.Setenv("GRACEBOT_DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.GraceDBURL != "https://gracedb.ligo.org/api/" {
		t.Errorf("GraceDBURL = %q", cfg.GraceDBURL)
	}
	if cfg.SearchQuery != "Production" {
		t.Errorf("SearchQuery = %q", cfg.SearchQuery)
	}
	if cfg.RefreshInterval != time.Hour {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.ListenAddr != ":8443" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}

	if got := cfg.SubscribersPath(); got != filepath.Join(cfg.DataDir, "subscribers.txt") {
		t.Errorf("SubscribersPath = %q", got)
	}
	if got := cfg.AnnouncedPath(); got != filepath.Join(cfg.DataDir, "announced.txt") {
		t.Errorf("AnnouncedPath = %q", got)
	}
	if got := cfg.ImageDir(); got != filepath.Join(cfg.DataDir, "img") {
		t.Errorf("ImageDir = %q", got)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	// t.Setenv registers the restore; unsetting afterwards leaves the
	// variables absent for this test only.
	t.Setenv("GRACEBOT_BOT_TOKEN", "")
	t.Setenv("GRACEBOT_WEBHOOK_SECRET", "")
	os.Unsetenv("GRACEBOT_BOT_TOKEN")
	os.Unsetenv("GRACEBOT_WEBHOOK_SECRET")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for missing required variables")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.local/share/gracebot", filepath.Join(home, ".local/share/gracebot")},
		{"/var/lib/gracebot", "/var/lib/gracebot"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		got, err := ExpandHome(tt.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
