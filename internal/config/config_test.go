package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("BLOB_BACKEND", "")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("ORACLE_TIMEOUT", "")
	t.Setenv("ORACLE_MAX_ATTEMPTS", "")
	t.Setenv("ORACLE_BUDGET", "")
	t.Setenv("HTTP_WRITE_TIMEOUT", "")
	t.Setenv("JOBS_MAX_RETRIES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Oracle.Timeout != 25*time.Second {
		t.Errorf("Oracle.Timeout = %s, want 25s", cfg.Oracle.Timeout)
	}
	if cfg.Oracle.Timeout+cfg.Oracle.Budget >= cfg.Server.WriteTimeout {
		t.Errorf("Oracle.Timeout + Oracle.Budget = %s, want below write timeout %s",
			cfg.Oracle.Timeout+cfg.Oracle.Budget, cfg.Server.WriteTimeout)
	}
	if cfg.Jobs.MaxRetries != 1 {
		t.Errorf("Jobs.MaxRetries = %d, want 1", cfg.Jobs.MaxRetries)
	}
	if cfg.Oracle.MaxAttempts != 3 {
		t.Errorf("Oracle.MaxAttempts = %d, want 3", cfg.Oracle.MaxAttempts)
	}
	if cfg.Lock.Backend != "local" {
		t.Errorf("Lock.Backend = %q, want local", cfg.Lock.Backend)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("ORACLE_TIMEOUT", "5s")
	t.Setenv("LOCK_TTL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != "postgres" {
		t.Errorf("Store.Backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Store.Postgres.Port != 6543 {
		t.Errorf("Postgres.Port = %d, want 6543", cfg.Store.Postgres.Port)
	}
	if cfg.Oracle.Timeout != 5*time.Second {
		t.Errorf("Oracle.Timeout = %s, want 5s", cfg.Oracle.Timeout)
	}
	if cfg.Lock.TTL != 30*time.Second {
		t.Errorf("Lock.TTL = %s, want default 30s", cfg.Lock.TTL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:  StoreConfig{Backend: "memory"},
			Blob:   BlobConfig{Backend: "memory"},
			Lock:   LockConfig{Backend: "local"},
			Server: ServerConfig{WriteTimeout: 120 * time.Second},
			Oracle: OracleConfig{MaxAttempts: 3, Timeout: 25 * time.Second, Budget: 75 * time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bigquery without project", func(c *Config) { c.Store.Backend = "bigquery" }, true},
		{"bigquery with project", func(c *Config) {
			c.Store.Backend = "bigquery"
			c.Store.BigQuery.ProjectID = "p"
		}, false},
		{"gcs without bucket", func(c *Config) { c.Blob.Backend = "gcs" }, true},
		{"unknown store", func(c *Config) { c.Store.Backend = "mongo" }, true},
		{"unknown lock", func(c *Config) { c.Lock.Backend = "etcd" }, true},
		{"zero attempts", func(c *Config) { c.Oracle.MaxAttempts = 0 }, true},
		{"oracle budget reaches write timeout", func(c *Config) { c.Oracle.Budget = 95 * time.Second }, true},
		{"oracle budget above write timeout", func(c *Config) {
			c.Oracle.Timeout = 60 * time.Second
			c.Oracle.Budget = 180 * time.Second
		}, true},
		{"no write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "scores", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=scores sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
