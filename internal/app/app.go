// Package app wires configuration, storage and the Telegram surface into a
// runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bryanwax12/newbotcursor/core/bootstrap"
	coredatabase "github.com/bryanwax12/newbotcursor/core/database"
	"github.com/bryanwax12/newbotcursor/core/logger"
	tg "github.com/bryanwax12/newbotcursor/core/telegram"
	tghelpers "github.com/bryanwax12/newbotcursor/core/telegram/helpers"
	"github.com/bryanwax12/newbotcursor/core/telegram/middleware"
	"github.com/bryanwax12/newbotcursor/core/telegram/router"
	"github.com/bryanwax12/newbotcursor/core/telegram/ui"
	"github.com/bryanwax12/newbotcursor/internal/bot"
	"github.com/bryanwax12/newbotcursor/internal/debounce"
	"github.com/bryanwax12/newbotcursor/internal/engine"
	"github.com/bryanwax12/newbotcursor/internal/flow"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/session"
	"github.com/bryanwax12/newbotcursor/internal/steps"
	"github.com/bryanwax12/newbotcursor/internal/templates"

	tele "gopkg.in/telebot.v4"
)

const textAdminOnly = "This command is for administrators."

// Storage is the persistence layer shared by the bot and the CLI.
type Storage struct {
	Infra    *bootstrap.Result
	Sessions session.Store
	Orders   orders.Store
	Sweeper  *session.Sweeper
}

// Close releases the session store and the connections.
func (s *Storage) Close() error {
	var errs []error
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
	}
	errs = append(errs, s.Infra.Close())
	return errors.Join(errs...)
}

// StorageHooks let tests replace the infrastructure steps of OpenStorage.
type StorageHooks = bootstrap.Options

// OpenStorage initializes logging, connects the configured backends and
// builds the session and order stores.
func OpenStorage(ctx context.Context, cfg *Config, hooks StorageHooks) (*Storage, error) {
	opts := hooks
	opts.Config = cfg.CoreConfig()
	if cfg.HasDatabase() {
		db := cfg.Database
		opts.Database = &db
	}
	if session.StoreType(cfg.Session.Store) == session.StoreTypeRedis {
		rc := cfg.Redis
		opts.Redis = &rc
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore(session.StoreType(cfg.Session.Store),
		session.WithTTL(cfg.Session.TTL()),
		session.WithDB(infra.DB),
		session.WithRedisClient(infra.Redis),
	)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: session store: %w", err)
	}

	orderOpts := []orders.Option{
		orders.WithPrice(cfg.Orders.PriceCents),
		orders.WithRequired(steps.Shipping().RequiredKeys()),
	}
	var orderStore orders.Store
	if infra.DB != nil {
		orderStore = orders.NewPostgresStore(infra.DB, orderOpts...)
	} else {
		orderStore = orders.NewMemoryStore(orderOpts...)
	}

	return &Storage{
		Infra:    infra,
		Sessions: sessions,
		Orders:   orderStore,
		Sweeper:  session.NewSweeper(sessions, cfg.Session.TTL(), cfg.Session.PurgeInterval()),
	}, nil
}

// App is a bootstrapped bot ready to run.
type App struct {
	cfg     *Config
	storage *Storage
	bot     *bot.Bot

	mu          sync.Mutex
	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// Bootstrap builds the application from cfg.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	return bootstrapWith(ctx, cfg, StorageHooks{})
}

func bootstrapWith(ctx context.Context, cfg *Config, hooks StorageHooks) (*App, error) {
	start := time.Now()
	st, err := OpenStorage(ctx, cfg, hooks)
	if err != nil {
		return nil, err
	}

	reg := steps.Shipping()
	var tplRepo templates.Repository
	if st.Infra.DB != nil {
		tplRepo = templates.NewPostgresRepository(st.Infra.DB)
	} else {
		tplRepo = templates.NewMemoryRepository()
	}
	tpl := templates.NewService(tplRepo, st.Orders, reg, templates.WithMaxPerUser(cfg.Templates.MaxPerUser))

	svc := flow.New(engine.New(reg), st.Sessions,
		flow.WithDebounce(debounce.New(time.Duration(cfg.Debounce.IntervalMS)*time.Millisecond)),
		flow.WithFinalizer(st.Orders),
		flow.WithTemplates(tpl),
		flow.WithMaxAttempts(cfg.Session.MaxCASAttempts),
	)

	b := bot.New(bot.Deps{
		Flow:       svc,
		Templates:  tpl,
		Orders:     st.Orders,
		Purge:      st.Sweeper.SweepOnce,
		PriceCents: cfg.Orders.PriceCents,
	})

	logger.Info(ctx, "app", "app.bootstrap",
		slog.String("status", "ok"),
		slog.String("session_store", cfg.Session.Store),
		slog.Bool("database", st.Infra.DB != nil),
		slog.Duration("ttl", cfg.Session.TTL()),
		slog.Duration("duration", logger.Took(start)),
	)
	return &App{cfg: cfg, storage: st, bot: b}, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	admin := middleware.AdminOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnReject: func(c tele.Context) error {
			return tghelpers.SendText(c, textAdminOnly)
		},
	}
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{Admin: admin})
	var fb ui.FallbackProvider = a.bot
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a.bot, reg, router.TextOptions{
		UnknownText:     fb.UnknownText(),
		UnknownDocument: fb.UnknownDocument(),
		Admin:           admin,
	})...)

	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg.CoreConfig(), fb.Throttled()),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			a.startSweeper(ctx)
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.Close()
		},
	}, nil
}

func (a *App) startSweeper(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopSweeper != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.stopSweeper, a.sweeperDone = cancel, done
	go func() {
		defer close(done)
		a.storage.Sweeper.Run(ctx)
	}()
}

// Close stops the sweeper and releases storage.
func (a *App) Close() error {
	a.mu.Lock()
	stop, done := a.stopSweeper, a.sweeperDone
	a.stopSweeper, a.sweeperDone = nil, nil
	a.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
	return a.storage.Close()
}

// MigrateUp applies pending migrations to the configured database.
func MigrateUp(cfg *Config) error {
	if !cfg.HasDatabase() {
		return fmt.Errorf("app: no database configured")
	}
	return coredatabase.RunMigrations(cfg.Database)
}

// MigrationVersion reports the schema version of the configured database.
func MigrationVersion(cfg *Config) (uint, bool, error) {
	if !cfg.HasDatabase() {
		return 0, false, fmt.Errorf("app: no database configured")
	}
	dir, err := cfg.Database.MigrationsPath()
	if err != nil {
		return 0, false, err
	}
	return coredatabase.Version(cfg.Database.URL(), dir)
}
