// Package logger provides the process-wide structured logger and the
// request metadata carried in contexts.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bryanwax12/newbotcursor/core/buildinfo"
	coreconfig "github.com/bryanwax12/newbotcursor/core/config"
)

// Component names used by the order bot.
const (
	ComponentSessions  = "service.sessions"
	ComponentOrders    = "service.orders"
	ComponentTemplates = "service.templates"
	ComponentFlow      = "flow"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	stateMu sync.Mutex
	active  *outputs

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(1, 50)
	traceAll     atomic.Bool

	// L is the base logger. Until InitLogger runs it and the component
	// loggers below discard everything.
	L = discard

	// DB, TG, MIG and TWire are L scoped to the database, Telegram
	// transport, migrations and handler wiring.
	DB    = discard
	TG    = discard
	MIG   = discard
	TWire = discard
)

// outputs are the sinks owned by an initialized logger.
type outputs struct {
	main    *asyncWriter
	errs    *asyncWriter
	closers []io.Closer
}

func (o *outputs) close() error {
	var errs []error
	for _, w := range []*asyncWriter{o.main, o.errs} {
		if w != nil {
			errs = append(errs, w.Flush(), w.Close())
		}
	}
	for _, c := range o.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// settings is the logging configuration resolved to concrete values.
type settings struct {
	format   logFormat
	level    slog.Level
	keyOrder []string
	sampleN  int
	sampleM  int
	profile  string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		format:   formatJSON,
		level:    slog.LevelInfo,
		keyOrder: defaultKeyOrder,
		sampleN:  1,
		sampleM:  50,
		profile:  "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		s.keyOrder = order
	}
	if n, m, ok := parseRatio(lc.DebugSample); ok {
		s.sampleN, s.sampleM = n, m
	}
	return s
}

func splitKeys(raw string) []string {
	if strings.TrimSpace(raw) == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// InitLogger installs the structured logger described by cfg. Calls after
// the first are no-ops until Shutdown.
func InitLogger(cfg *coreconfig.Config) error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if active != nil {
		return nil
	}

	s := resolve(cfg)
	levelVar.Set(s.level)
	debugSampler.Set(s.sampleN, s.sampleM)
	traceAll.Store(envTruthy("LOG_TRACE") || envTruthy("TRACE"))

	out := openOutputs(cfg)
	active = out

	base := slog.New(newStructuredHandler(handlerConfig{
		level:     &levelVar,
		writer:    out.main,
		errWriter: out.errs,
		format:    s.format,
		keyOrder:  s.keyOrder,
	}))
	setLoggers(base)
	slog.SetDefault(base)

	base.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
	)
	return nil
}

func setLoggers(base *slog.Logger) {
	L = base
	if base == discard {
		DB, TG, MIG, TWire = discard, discard, discard, discard
		return
	}
	DB = base.With("component", "db")
	TG = base.With("component", "tg")
	MIG = base.With("component", "db.migrate")
	TWire = base.With("component", "tg.wire")
}

// openOutputs always writes to stdout. With logging.dir set it also appends
// to bot_file and sends ERROR lines to errors_file. File problems are
// reported on the standard logger and the file is skipped.
func openOutputs(cfg *coreconfig.Config) *outputs {
	out := &outputs{}
	mainSinks := []io.Writer{os.Stdout}
	var errSinks []io.Writer

	if cfg != nil {
		dir := strings.TrimSpace(cfg.Logging.Dir)
		open := func(name string) io.Writer {
			name = strings.TrimSpace(name)
			if dir == "" || name == "" {
				return nil
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Printf("logger: create log dir %s: %v", dir, err)
				return nil
			}
			path := filepath.Join(dir, name)
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				log.Printf("logger: open log file %s: %v", path, err)
				return nil
			}
			out.closers = append(out.closers, f)
			return f
		}
		if f := open(cfg.Logging.BotFile); f != nil {
			mainSinks = append(mainSinks, f)
		}
		if f := open(cfg.Logging.ErrorsFile); f != nil {
			errSinks = append(errSinks, f)
		}
	}

	out.main = newAsyncWriter(mainSinks, 64*1024)
	if len(errSinks) > 0 {
		out.errs = newAsyncWriter(errSinks, 16*1024)
	}
	return out
}

// Shutdown flushes and closes the sinks and restores the discarding
// logger. InitLogger may be called again afterwards.
func Shutdown() error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if active == nil {
		return nil
	}
	setLoggers(discard)
	slog.SetDefault(discard)
	err := active.close()
	active = nil
	return err
}

func envTruthy(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. LOG_TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return traceAll.Load() || debugSampler.Allow()
}

// Background is context.Background for call sites that start a request.
func Background() context.Context { return context.Background() }

// Component returns L with the component attribute set.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes an event through logg, or the context logger when logg
// is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}
