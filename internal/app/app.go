package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crypto-volatility-alerts/internal/alerting"
	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/cache"
	"crypto-volatility-alerts/internal/config"
	"crypto-volatility-alerts/internal/detector"
	"crypto-volatility-alerts/internal/fetcher"
	"crypto-volatility-alerts/internal/scheduler"
	"crypto-volatility-alerts/internal/service"
	"crypto-volatility-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// resolveAssets returns the configured assets, or the single named one
// when symbol is non-empty.
func (a *App) resolveAssets(symbol string) ([]asset.Asset, error) {
	if symbol == "" {
		return a.Config.Assets()
	}
	target, err := asset.Parse(symbol)
	if err != nil {
		return nil, err
	}
	return []asset.Asset{target}, nil
}

func (a *App) newFetcher() *fetcher.CoinGecko {
	return fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
		BaseURL:    a.Config.Source.BaseURL,
		VsCurrency: a.Config.Source.VsCurrency,
		Timeout:    a.Config.Source.RequestTimeout,
		UserAgent:  a.Config.Source.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return alerting.NewWebhookNotifier(a.Config.Alerting.WebhookURL, a.Config.Alerting.RequestTimeout, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache(ctx context.Context) (*cache.LatestQuotes, error) {
	if a.Config.Redis.Addr == "" {
		return nil, nil
	}
	// TTL tracks the staleness bound: an expired key means stale data.
	ttl := 2 * a.Config.Scheduler.Interval
	return cache.NewLatestQuotes(ctx, a.Config.Redis, ttl, a.Logger)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	assets, err := a.Config.Assets()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required for the monitoring service")
	}
	defer closeStore()

	quoteCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if quoteCache == nil {
		a.Logger.Info().Msg("redis.addr not configured; latest-quote cache disabled")
	} else {
		defer quoteCache.Close()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	quotes := a.newFetcher()
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("alerting disabled; spikes will be detected and audited but not delivered")
	}
	spikes := detector.New(store, a.Config.Detector.Window, a.Config.Detector.ThresholdPct, a.Logger)

	var publisher service.LatestPublisher
	if quoteCache != nil {
		publisher = quoteCache
	}

	svc := service.New(a.Config, sched, assets, quotes, store, store, spikes, notifier, publisher, a.Logger)

	a.Logger.Info().
		Int("assets", len(assets)).
		Dur("interval", a.Config.Scheduler.Interval).
		Dur("window", a.Config.Detector.Window).
		Float64("threshold_pct", a.Config.Detector.ThresholdPct).
		Msg("starting monitoring service")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Asset     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Asset  string
	Limit  int
	Alerts bool
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Asset   string
	From    time.Time
	To      time.Time
	DryRun  bool
	Workers int
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Asset    string
	Baseline float64
	Current  float64
}
