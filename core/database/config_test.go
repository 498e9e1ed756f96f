package database

import "testing"

func TestConfigURL(t *testing.T) {
	cfg := Config{Host: "db", User: "bot", Password: "p@ss", Name: "orders"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "postgres://bot:p%40ss@db:5432/orders?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Fatalf("URL() = %q, want %q", got, want)
	}
	if cfg.MaxConnections != 10 {
		t.Fatalf("MaxConnections = %d, want 10", cfg.MaxConnections)
	}
}

func TestConfigNormalizeRequiresHost(t *testing.T) {
	cfg := Config{Name: "orders"}
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestBetweenCountsOnlyNewFiles(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	if got := between(files, 1, 3); len(got) != 2 {
		t.Fatalf("between(1, 3) = %v, want 2 files", got)
	}
	if got := between(files, 0, 1); len(got) != 1 || got[0] != "000001_a.up.sql" {
		t.Fatalf("between(0, 1) = %v", got)
	}
}
