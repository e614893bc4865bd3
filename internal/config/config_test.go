package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.DB.Host != "127.0.0.1" || cfg.DB.Port != 3306 {
		t.Errorf("DB = %s:%d, want 127.0.0.1:3306", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.DB.User != "root" || cfg.DB.Database != "keyturn" {
		t.Errorf("DB user/database = %s/%s, want root/keyturn", cfg.DB.User, cfg.DB.Database)
	}
	if cfg.SLA.WarnSeconds != 30 {
		t.Errorf("SLA.WarnSeconds = %d, want 30", cfg.SLA.WarnSeconds)
	}
	if cfg.Sweep.Schedule != "* * * * *" {
		t.Errorf("Sweep.Schedule = %q, want every minute", cfg.Sweep.Schedule)
	}
	if cfg.Sweep.Enabled {
		t.Error("Sweep.Enabled should default to false")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
server:
  port: 9090
db:
  host: db.internal
  port: 3307
  user: keyturn
  password: secret
  database: keyturn_prod
sla:
  warn_seconds: 60
sweep:
  enabled: true
  schedule: "*/5 * * * *"
notify:
  slack:
    bot_token: xoxb-test
    channel: C123
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.DB.Host != "db.internal" || cfg.DB.Port != 3307 {
		t.Errorf("DB = %s:%d, want db.internal:3307", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.DB.Password != "secret" || cfg.DB.Database != "keyturn_prod" {
		t.Errorf("DB credentials not preserved: %+v", cfg.DB)
	}
	if cfg.SLA.WarnSeconds != 60 {
		t.Errorf("SLA.WarnSeconds = %d, want 60", cfg.SLA.WarnSeconds)
	}
	if !cfg.Sweep.Enabled || cfg.Sweep.Schedule != "*/5 * * * *" {
		t.Errorf("Sweep = %+v, want enabled every 5 minutes", cfg.Sweep)
	}
	if cfg.Notify.Slack.Channel != "C123" {
		t.Errorf("Slack channel = %q, want C123", cfg.Notify.Slack.Channel)
	}
}

func TestParse_PartialAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9999\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.DB.Host != "127.0.0.1" {
		t.Errorf("DB.Host = %q, want default", cfg.DB.Host)
	}
	if cfg.SLA.WarnSeconds != 30 {
		t.Errorf("SLA.WarnSeconds = %d, want default 30", cfg.SLA.WarnSeconds)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"bad yaml", "server: [port", "parse"},
		{"port out of range", "server:\n  port: 99999\n", "out of range"},
		{"negative warn", "sla:\n  warn_seconds: -5\n", "warn_seconds"},
		{"slack token without channel", "notify:\n  slack:\n    bot_token: xoxb-x\n", "notify.slack.channel"},
		{"discord token without channel", "notify:\n  discord:\n    bot_token: x\n", "notify.discord.channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyturn.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}
