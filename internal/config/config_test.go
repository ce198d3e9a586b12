package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"groupguard/internal/storage"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("TELEGRAM_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error without a token")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
telegram_token: from-file
database:
  driver: postgresql
  dsn: postgres://guard@localhost/guard
antiflood:
  limit: 1
  window_seconds: 20
  action: BAN
warns:
  limit: 5
  expiry_seconds: 0
  punishment: explode
blacklist: [" spam ", "", "scam"]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("WARN_LIMIT", "4")
	t.Setenv("FEATURE_BLACKLIST", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramToken != "from-file" {
		t.Fatalf("unexpected token %q", cfg.TelegramToken)
	}
	if cfg.Database.Driver != storage.DriverPostgres {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
	flood := cfg.Antiflood.Settings()
	if flood.Limit != 3 || flood.Window != 20*time.Second || flood.Action != "ban" {
		t.Fatalf("unexpected flood defaults %+v", flood)
	}
	warns := cfg.Warns.Settings()
	if warns.Limit != 4 || warns.Expiry != 0 || warns.Punishment != "ban" {
		t.Fatalf("unexpected warn defaults %+v", warns)
	}
	if cfg.Features.Blacklist || !cfg.Features.Antiflood {
		t.Fatalf("unexpected features %+v", cfg.Features)
	}
	if len(cfg.Blacklist) != 2 || cfg.Blacklist[0] != "spam" {
		t.Fatalf("unexpected blacklist %v", cfg.Blacklist)
	}
}

func TestBuildLoggerFallsBackToInfo(t *testing.T) {
	logger, err := BuildLogger("loud")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("debug must be disabled at the default level")
	}
}
