package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/alerting"
	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/config"
	"crypto-volatility-alerts/internal/detector"
	"crypto-volatility-alerts/internal/fetcher"
	"crypto-volatility-alerts/internal/scheduler"
	"crypto-volatility-alerts/internal/storage"
)

// SpikeDetector classifies an asset's trailing window.
type SpikeDetector interface {
	Detect(ctx context.Context, a asset.Asset) (*detector.AlertEvent, error)
}

// LatestPublisher receives each freshly stored sample, e.g. a Redis
// cache serving dashboard freshness reads.
type LatestPublisher interface {
	Publish(ctx context.Context, sample storage.PriceSample) error
}

// Service owns the per-tick fan-out: for every configured asset, one
// fetch, store, detect, notify pipeline. Assets are independent: a
// failing or slow pipeline never blocks the others, and a pipeline
// still running when the next tick fires causes that asset's tick to
// be skipped, not queued.
type Service struct {
	scheduler *scheduler.Scheduler
	assets    []asset.Asset
	quotes    fetcher.QuoteFetcher
	store     storage.PriceSampleStore
	alerts    storage.AlertStore
	detector  SpikeDetector
	suppress  *detector.Suppressor
	notifier  alerting.Notifier
	publisher LatestPublisher
	logger    zerolog.Logger

	threshold       decimal.Decimal
	stageTimeout    time.Duration
	shutdownTimeout time.Duration
	alertsOn        bool
	locker          storage.AdvisoryLocker
	lockKey         int64

	busy     map[asset.Asset]*atomic.Bool
	inFlight sync.WaitGroup
}

// New constructs the monitoring service.
func New(
	cfg *config.Config,
	sched *scheduler.Scheduler,
	assets []asset.Asset,
	quotes fetcher.QuoteFetcher,
	store storage.PriceSampleStore,
	alertStore storage.AlertStore,
	spikes SpikeDetector,
	notifier alerting.Notifier,
	publisher LatestPublisher,
	logger zerolog.Logger,
) *Service {
	busy := make(map[asset.Asset]*atomic.Bool, len(assets))
	for _, a := range assets {
		busy[a] = &atomic.Bool{}
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:       sched,
		assets:          assets,
		quotes:          quotes,
		store:           store,
		alerts:          alertStore,
		detector:        spikes,
		suppress:        detector.NewSuppressor(cfg.Detector.Window),
		notifier:        notifier,
		publisher:       publisher,
		logger:          logger.With().Str("component", "service").Logger(),
		threshold:       decimal.NewFromFloat(cfg.Detector.ThresholdPct),
		stageTimeout:    cfg.Scheduler.StageTimeout,
		shutdownTimeout: cfg.Scheduler.ShutdownTimeout,
		alertsOn:        cfg.Alerting.Enabled,
		locker:          locker,
		lockKey:         cfg.Scheduler.AdvisoryLockKey,
		busy:            busy,
	}
}

// Run drives the sampling loop until ctx is cancelled, then waits for
// in-flight pipelines up to the shutdown timeout. When several watcher
// instances share a database, a session-scoped advisory lock elects a
// single poller; the others stand by and retry.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	unlock, err := s.acquireLeadership(ctx)
	if err != nil {
		return err
	}
	if unlock != nil {
		defer unlock()
	}

	err = s.scheduler.Run(ctx, s.ProcessTick)
	s.drainPipelines()
	return err
}

// ProcessTick fans out one pipeline per asset and returns without
// waiting for them. Busy assets are skipped; the skip is logged so it
// stays observable.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	for _, a := range s.assets {
		flag := s.busy[a]
		if !flag.CompareAndSwap(false, true) {
			s.logger.Warn().Str("asset", a.String()).Time("tick", tick).Msg("previous pipeline still running; skipping asset this tick")
			continue
		}

		s.inFlight.Add(1)
		go func(a asset.Asset) {
			defer s.inFlight.Done()
			defer flag.Store(false)
			s.runPipeline(ctx, a, tick)
		}(a)
	}
	return nil
}

// runPipeline executes fetch, store, detect, notify for one asset. Every
// stage failure is contained here: logged with asset and stage context,
// never propagated to other assets or the scheduler.
func (s *Service) runPipeline(ctx context.Context, a asset.Asset, tick time.Time) {
	// Stages keep running through shutdown so a cancelled tick cannot
	// leave a half-finished pipeline mid-write; each stage is bounded
	// by its own timeout and Run bounds the total wait.
	base := context.WithoutCancel(ctx)

	quote, err := s.fetchStage(base, a)
	if err != nil {
		s.logStageFailure(a, "fetch", tick, err)
		return
	}

	sample, err := s.storeStage(base, quote)
	if err != nil {
		// Drop-and-log: no in-memory buffering when the store is down.
		s.logStageFailure(a, "store", tick, err)
		return
	}

	event, err := s.detectStage(base, a)
	if err != nil {
		s.logStageFailure(a, "detect", tick, err)
		return
	}
	if event == nil {
		s.logger.Debug().Str("asset", a.String()).Time("tick", tick).Str("price", sample.Price.String()).Msg("sample recorded, no spike")
		return
	}

	s.notifyStage(base, *event, tick)
}

func (s *Service) fetchStage(ctx context.Context, a asset.Asset) (fetcher.Quote, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	return s.quotes.Fetch(stageCtx, a)
}

func (s *Service) storeStage(ctx context.Context, quote fetcher.Quote) (storage.PriceSample, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	sample := storage.PriceSample{
		Asset:      quote.Asset,
		Price:      quote.Price,
		ObservedAt: quote.ObservedAt,
	}

	inserted, err := s.store.InsertPriceSample(stageCtx, sample)
	if err != nil {
		return storage.PriceSample{}, err
	}
	if !inserted {
		s.logger.Debug().Str("asset", quote.Asset.String()).Time("observed_at", quote.ObservedAt).Msg("sample already present; append skipped")
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(stageCtx, sample); err != nil {
			s.logger.Warn().Err(err).Str("asset", quote.Asset.String()).Msg("failed to publish latest quote to cache")
		}
	}
	return sample, nil
}

func (s *Service) detectStage(ctx context.Context, a asset.Asset) (*detector.AlertEvent, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	return s.detector.Detect(stageCtx, a)
}

func (s *Service) notifyStage(ctx context.Context, event detector.AlertEvent, tick time.Time) {
	if !s.suppress.Allow(event) {
		s.logger.Info().
			Str("asset", event.Asset.String()).
			Str("direction", string(event.Direction)).
			Time("window_end", event.WindowEnd).
			Msg("alert suppressed by de-duplication window")
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	if s.alerts != nil {
		record := storage.AlertRecord{
			Asset:        event.Asset,
			WindowStart:  event.WindowStart,
			WindowEnd:    event.WindowEnd,
			PctChange:    event.PctChange,
			ThresholdPct: s.threshold,
			Direction:    string(event.Direction),
		}
		if _, err := s.alerts.InsertAlert(stageCtx, record); err != nil {
			s.logStageFailure(event.Asset, "audit", tick, err)
		}
	}

	if !s.alertsOn || s.notifier == nil {
		return
	}

	note := alerting.Notification{Event: event, ThresholdPct: s.threshold}
	if err := s.notifier.Notify(stageCtx, note); err != nil {
		// Fire-and-forget: logged, never retried within the tick.
		s.logStageFailure(event.Asset, "notify", tick, err)
		return
	}
}

func (s *Service) logStageFailure(a asset.Asset, stage string, tick time.Time, err error) {
	evt := s.logger.Error().Err(err).Str("asset", a.String()).Str("stage", stage).Time("tick", tick)
	if fe, ok := fetcher.AsError(err); ok {
		evt = evt.Str("kind", fe.Kind.String())
		if fe.RetryAfter > 0 {
			evt = evt.Dur("retry_after", fe.RetryAfter)
		}
	}
	evt.Msg("pipeline stage failed")
}

func (s *Service) drainPipelines() {
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn().Dur("timeout", s.shutdownTimeout).Msg("shutdown timeout elapsed; abandoning in-flight pipelines")
	}
}

// acquireLeadership blocks until this instance holds the advisory lock
// or ctx is cancelled. Returns a nil unlock when locking is disabled.
func (s *Service) acquireLeadership(ctx context.Context) (func(), error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, nil
	}

	for {
		unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
		if err != nil {
			return nil, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if acquired {
			s.logger.Info().Int64("key", s.lockKey).Msg("advisory lock acquired; this instance polls")
			return unlock, nil
		}

		s.logger.Info().Int64("key", s.lockKey).Msg("advisory lock held by another instance; standing by")
		timer := time.NewTimer(30 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
