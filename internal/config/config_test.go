package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/kalend.db")
	if cfg.Database.Path != "/tmp/kalend.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Gestures.Timeout.Std() != 30*time.Second {
		t.Fatalf("unexpected gesture timeout %s", cfg.Gestures.Timeout.Std())
	}
	if cfg.Calendar.DefaultView != "week" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected calendar/logging defaults %#v %#v", cfg.Calendar, cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/kalend.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/kalend.db"

[logging]
level = "debug"

[calendar]
week_start = "Sunday"
default_view = "month"

[gestures]
timeout = "45s"

[reconcile]
timeout = "2s"

[identity]
user_id = "alice"

[server]
http_bind = ":9000"

[keys]
next_week = "]"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/kalend.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Gestures.Timeout.Std() != 45*time.Second || cfg.Reconcile.Timeout.Std() != 2*time.Second {
		t.Fatalf("unexpected timeouts %s %s", cfg.Gestures.Timeout.Std(), cfg.Reconcile.Timeout.Std())
	}
	day, err := cfg.WeekStart()
	if err != nil || day != time.Sunday {
		t.Fatalf("WeekStart() = %s, %v", day, err)
	}
	if cfg.Identity.UserID != "alice" || cfg.Server.HTTPBind != ":9000" {
		t.Fatalf("unexpected identity/server %#v %#v", cfg.Identity, cfg.Server)
	}
	if cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("expected untouched keys to keep defaults, got %q", cfg.Server.MCPEndpoint)
	}
	if cfg.Keys.NextWeek != "]" || cfg.Keys.PrevWeek != "" {
		t.Fatalf("unexpected key overrides %#v", cfg.Keys)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"view":     "[calendar]\ndefault_view = \"year\"\n",
		"week":     "[calendar]\nweek_start = \"someday\"\n",
		"level":    "[logging]\nlevel = \"loud\"\n",
		"timeout":  "[gestures]\ntimeout = \"0s\"\n",
		"duration": "[reconcile]\ntimeout = \"soon\"\n",
		"endpoint": "[server]\nmcp_endpoint = \"mcp\"\n",
		"cors":     "[server]\ncors_origins = [\"localhost:5173\"]\n",
		"identity": "[identity]\nuser_id = \" \"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatal("expected Load() to reject config")
			}
		})
	}
}

func TestWeekStartAbbreviations(t *testing.T) {
	cfg := Default("/tmp/kalend.db")
	cfg.Calendar.WeekStart = "sat"
	day, err := cfg.WeekStart()
	if err != nil || day != time.Saturday {
		t.Fatalf("WeekStart() = %s, %v", day, err)
	}
}

func TestDurationMarshalText(t *testing.T) {
	out, err := Duration(90 * time.Second).MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if !strings.EqualFold(string(out), "1m30s") {
		t.Fatalf("unexpected duration text %q", out)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
