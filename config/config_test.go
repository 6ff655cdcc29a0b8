package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("")
	if cfg.Server.Address != ":8000" {
		t.Fatalf("expected default address :8000, got %q", cfg.Server.Address)
	}
	if cfg.Partner.APIDomain != "altius.finance" {
		t.Fatalf("expected default api domain, got %q", cfg.Partner.APIDomain)
	}
	if cfg.Partner.SessionTTL != time.Hour {
		t.Fatalf("expected 1h session ttl, got %v", cfg.Partner.SessionTTL)
	}
	if !cfg.Partner.InsecureTLS {
		t.Fatal("expected insecure_tls to default to true")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  address: ":9090"
  jwt_secret: "file-secret"
partner:
  api_domain: "example.test"
  retry_count: 1
  insecure_tls: false
databases:
  postgres:
    host: "db"
    dbname: "dealdesk"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadConfig(path)
	if cfg.Server.Address != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Server.Address)
	}
	if cfg.Partner.APIDomain != "example.test" || cfg.Partner.RetryCount != 1 {
		t.Fatalf("partner config not applied: %+v", cfg.Partner)
	}
	if cfg.Partner.InsecureTLS {
		t.Fatal("expected insecure_tls false from file")
	}
	// defaults still fill the gaps
	if cfg.Partner.ReadTimeout != 30*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.Partner.ReadTimeout)
	}
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != "postgres://:@db:5432/dealdesk?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestPostgresDSNPrefersURL(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@h/d", Host: "ignored", DBName: "ignored"}
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != "postgres://u:p@h/d" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
