package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/shop.db
checkout:
  tax_rate: "0.10"
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STOREFRONT_AUTH_CLIENT_ID", "client-from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port: got %d want 9090", cfg.Server.Port)
	}
	if cfg.Checkout.TaxRate != "0.10" {
		t.Fatalf("tax rate: got %q", cfg.Checkout.TaxRate)
	}
	if cfg.Auth.ClientID != "client-from-env" {
		t.Fatalf("client id: got %q", cfg.Auth.ClientID)
	}
	if got := cfg.Database.DSN(); got != "/tmp/shop.db" {
		t.Fatalf("sqlite dsn: got %q", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 7*24*time.Hour {
		t.Fatalf("default session ttl: got %s", cfg.Auth.SessionTTL)
	}
	if cfg.Checkout.TaxRate != "0.08" {
		t.Fatalf("default tax rate: got %q", cfg.Checkout.TaxRate)
	}
}

func TestMySQLDSN(t *testing.T) {
	c := DatabaseConfig{Driver: "mysql", Username: "u", Password: "p", Host: "db", Port: 3306, Database: "shop"}
	want := "u:p@tcp(db:3306)/shop?charset=utf8mb4&parseTime=True&loc=Local"
	if got := c.DSN(); got != want {
		t.Fatalf("dsn: got %q want %q", got, want)
	}
}

func TestLogConfigBuildRejectsBadLevel(t *testing.T) {
	c := LogConfig{Level: "loud"}
	if _, err := c.Build(); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
