package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/yourtanker/orderflow/internal/cache"
	"github.com/yourtanker/orderflow/internal/config"
	"github.com/yourtanker/orderflow/internal/loyalty"
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/remote"
	"github.com/yourtanker/orderflow/internal/store"
)

// App bundles the wired engine components behind one constructor so
// every command builds the stack the same way.
type App struct {
	Config  config.Config
	Cache   *cache.Cache
	Remote  remote.Store
	Store   *store.Store
	Loyalty *loyalty.Engine
	Log     *slog.Logger
}

// NewApp loads configuration and wires cache, remote store, order
// store and loyalty engine. The Postgres backend is selected when the
// config carries a DSN; otherwise the in-memory backend is used, which
// makes the CLI usable without any services running.
func NewApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening cache", err)
	}

	var r remote.Store
	if cfg.PostgresDSN != "" {
		pg, err := remote.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			// The remote store being down is an absorbed condition
			// everywhere else; treat it the same at startup.
			log.Warn("remote store unreachable, operating from cache", "err", err)
			down := remote.NewMemory()
			down.SetAvailable(false)
			r = down
		} else {
			r = pg
		}
	} else {
		r = remote.NewMemory()
	}

	s, err := store.New(r, c,
		store.WithLogger(log),
		store.WithTariff(order.Tariff{
			Symbol:  cfg.Currency,
			Normal:  cfg.Tariff.Normal,
			Express: cfg.Tariff.Express,
		}),
		store.WithAckDelay(cfg.ParsedAckDelay()),
	)
	if err != nil {
		c.Close()
		return nil, WrapExitError(ExitCommandError, "opening order store", err)
	}

	active, err := c.ActiveCode(ctx)
	if err != nil {
		c.Close()
		return nil, WrapExitError(ExitCommandError, "loading promo state", err)
	}
	l := loyalty.New(
		loyalty.RandomSource{Alphabet: cfg.Promo.Alphabet, Length: cfg.Promo.Length},
		loyalty.WithMilestone(cfg.Milestone),
		loyalty.WithActiveCode(active),
	)

	return &App{Config: cfg, Cache: c, Remote: r, Store: s, Loyalty: l, Log: log}, nil
}

// Close releases the cache handle.
func (a *App) Close() error {
	return a.Cache.Close()
}

// PersistPromo mirrors the loyalty engine's active code to the cache.
func (a *App) PersistPromo(ctx context.Context) {
	if err := a.Cache.SetActiveCode(ctx, a.Loyalty.ActiveCode()); err != nil {
		a.Log.Warn("persisting active promo code failed", "err", err)
	}
}
