// Package cli wires the configuration into the engines, stores and adapters
// used by the stategraph commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/internal/config"
	"github.com/aretw0/stategraph/internal/flows"
	"github.com/aretw0/stategraph/internal/logging"
	"github.com/aretw0/stategraph/pkg/adapters/file"
	"github.com/aretw0/stategraph/pkg/adapters/gemini"
	"github.com/aretw0/stategraph/pkg/adapters/memory"
	"github.com/aretw0/stategraph/pkg/adapters/quotes"
	"github.com/aretw0/stategraph/pkg/adapters/redis"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/observability"
	"github.com/aretw0/stategraph/pkg/persistence/middleware"
	"github.com/aretw0/stategraph/pkg/ports"
	"github.com/aretw0/stategraph/pkg/session"
)

// ErrNoGenerator is returned when a chat graph is requested without a Gemini API key.
var ErrNoGenerator = errors.New("chat graphs need gemini.api_key or GEMINI_API_KEY")

// App holds everything a command needs.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Catalog  *flows.Catalog
	Sessions *session.Manager

	closers []func(context.Context) error
}

// AppOptions tune NewApp for a command.
type AppOptions struct {
	// LogWriter receives the logs, stderr when nil.
	LogWriter io.Writer
	// TraceWriter receives spans when tracing is enabled.
	TraceWriter io.Writer
	// Hooks are merged after the logging and metrics hooks.
	Hooks domain.LifecycleHooks
	// Generators replaces the Gemini factory (tests, offline runs).
	Generators flows.GeneratorFactory
	// Quotes replaces the configured quote source.
	Quotes ports.QuoteSource
	// Store replaces the configured session store.
	Store ports.RunStore
}

// NewApp builds the application from cfg.
func NewApp(ctx context.Context, cfg config.Config, opts AppOptions) (_ *App, err error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, format)
	if opts.LogWriter != nil {
		logger = logging.NewWithWriter(opts.LogWriter, level, format)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	hooks := observability.LogHooks(logger).Merge(app.Metrics.Hooks()).Merge(opts.Hooks)
	engineOpts := []stategraph.Option{
		stategraph.WithLogger(logger),
		stategraph.WithLifecycleHooks(hooks),
		stategraph.WithMaxSteps(cfg.Engine.MaxSteps),
	}

	if cfg.Engine.Tracing && opts.TraceWriter != nil {
		shutdown, err := observability.InitStdoutTracing(opts.TraceWriter, "stategraph", strings.TrimSpace(stategraph.Version))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, shutdown)
		engineOpts = append(engineOpts, stategraph.WithMiddleware(
			observability.Tracing(otel.Tracer(observability.TracerName)),
		))
	}

	src := opts.Quotes
	if src == nil {
		src, err = quoteSource(cfg.Quotes)
		if err != nil {
			return nil, err
		}
	}

	gens := opts.Generators
	if gens == nil && cfg.Gemini.APIKey != "" {
		gens = geminiFactory(ctx, cfg.Gemini)
	}

	app.Catalog, err = flows.NewCatalog(flows.Deps{
		Rates: flows.Rates{
			Markup:  cfg.Portfolio.Markup,
			TaxRate: cfg.Portfolio.TaxRate,
			USDINR:  cfg.Portfolio.USDINR,
			USDEUR:  cfg.Portfolio.USDEUR,
		},
		Quotes:     src,
		Generators: gens,
		Retries:    cfg.Gemini.Retries,
		Build:      []graph.Option{graph.WithLogger(logger)},
		Engine:     engineOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("build graphs: %w", err)
	}

	sessionOpts := []session.Option{session.WithLogger(logger)}
	store := opts.Store
	if store == nil {
		var locker ports.DistributedLocker
		store, locker, err = app.openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if locker != nil {
			sessionOpts = append(sessionOpts, session.WithLocker(locker))
		}
	}
	store, err = wrapStore(store, cfg.Store)
	if err != nil {
		return nil, err
	}
	app.Sessions = session.NewManager(store, sessionOpts...)

	return app, nil
}

// openStore picks Redis, then a session directory, then memory.
func (a *App) openStore(ctx context.Context, cfg config.Config) (ports.RunStore, ports.DistributedLocker, error) {
	switch {
	case cfg.Redis.Addr != "":
		prefix := redisPrefix(cfg.Redis)
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(prefix),
			redis.WithTTL(cfg.Redis.SessionTTL()),
		)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
		a.Logger.Debug("using redis session store", "addr", cfg.Redis.Addr)
		return rs, redis.NewLocker(rs.Client(), prefix), nil
	case cfg.Store.Dir != "":
		a.Logger.Debug("using file session store", "dir", cfg.Store.Dir)
		return file.New(cfg.Store.Dir), nil, nil
	default:
		return memory.NewStore(), nil, nil
	}
}

// wrapStore applies masking, then encryption, to every saved snapshot.
func wrapStore(store ports.RunStore, cfg config.StoreConfig) (ports.RunStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Mask) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}

func redisPrefix(cfg config.RedisConfig) string {
	if cfg.Prefix != "" {
		return cfg.Prefix
	}
	return redis.DefaultPrefix
}

func quoteSource(cfg config.QuotesConfig) (ports.QuoteSource, error) {
	switch cfg.Source {
	case "", config.QuotesStatic:
		return quotes.NewStatic(nil), nil
	case config.QuotesYahoo:
		return quotes.NewYahoo(), nil
	default:
		return nil, fmt.Errorf("unknown quote source %q", cfg.Source)
	}
}

func geminiFactory(ctx context.Context, cfg config.GeminiConfig) flows.GeneratorFactory {
	return func(tools []domain.Tool) (ports.Generator, error) {
		return gemini.New(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Tools:       tools,
		})
	}
}

// Runner resolves a graph by name. Chat graphs missing for lack of a
// generator report ErrNoGenerator.
func (a *App) Runner(name string) (ports.Runner, error) {
	r, ok := a.Catalog.Runner(name)
	if ok {
		return r, nil
	}
	if name == flows.ChatGraph || name == flows.ToolChatGraph {
		return nil, ErrNoGenerator
	}
	return nil, fmt.Errorf("unknown graph %q (available: %s)", name, strings.Join(a.Catalog.Names(), ", "))
}

// Close flushes the tracer and closes the store connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}
