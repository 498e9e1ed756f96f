package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/bryanwax12/newbotcursor/core/logger"
)

const readyTimeout = 30 * time.Second

// RunMigrations waits for the database and applies every pending up
// migration from cfg's migrations directory.
func RunMigrations(cfg Config) error {
	dsn := cfg.URL()
	if err := WaitReady(context.Background(), dsn, readyTimeout); err != nil {
		logger.MIG.Error("", slog.String("event", "db.migrate"), slog.String("status", "fail"), slog.String("err", err.Error()))
		return err
	}
	dir, err := cfg.MigrationsPath()
	if err != nil {
		return err
	}
	return Migrate(dsn, dir)
}

func open(dsn, dir string) (*migrate.Migrate, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve migrations path: %w", err)
	}
	m, err := migrate.New("file://"+abs, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, abs, nil
}

// Migrate applies all up migrations found in dir to the database at dsn.
func Migrate(dsn, dir string) error {
	m, abs, err := open(dsn, dir)
	if err != nil {
		logger.MIG.Error("", slog.String("event", "db.migrate"), slog.String("status", "fail"), slog.String("err", err.Error()))
		return err
	}
	defer m.Close()

	files := upFiles(abs)
	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("",
			slog.String("event", "apply"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := between(files, uint64(from), uint64(to))
	attrs := []any{
		slog.String("event", "summary"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("count", len(applied)),
		slog.Duration("duration", logger.Took(start)),
	}
	if preview, cut := logger.SummarizeStrings(applied, 6); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview), slog.Bool("files_truncated", cut))
	}
	logger.MIG.Info("", attrs...)
	return nil
}

// Version reports the schema version recorded in the database at dsn. A
// database without migrations reports version 0.
func Version(dsn, dir string) (uint, bool, error) {
	m, _, err := open(dsn, dir)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// upFiles lists the *.up.sql files in dir, sorted.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// fileVersion reads the numeric prefix of "000002_orders.up.sql".
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// between returns the files with a version in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
