package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/alerting"
	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/detector"
	"crypto-volatility-alerts/internal/storage"
)

// SimulateAlert runs the detection and delivery path against a
// synthetic two-sample window, exercising the real webhook.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	target, err := asset.Parse(opts.Asset)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	source := &syntheticSource{samples: []storage.PriceSample{
		{
			Asset:      target,
			Price:      decimal.NewFromFloat(opts.Baseline),
			ObservedAt: now.Add(-a.Config.Detector.Window),
		},
		{
			Asset:      target,
			Price:      decimal.NewFromFloat(opts.Current),
			ObservedAt: now,
		},
	}}

	spikes := detector.New(source, a.Config.Detector.Window, a.Config.Detector.ThresholdPct, a.Logger)
	event, err := spikes.Detect(ctx, target)
	if err != nil {
		return err
	}
	if event == nil {
		a.Logger.Info().Msg("simulated change stays below the threshold; no alert emitted")
		return nil
	}

	note := alerting.Notification{
		Event:        *event,
		ThresholdPct: decimal.NewFromFloat(a.Config.Detector.ThresholdPct),
	}
	return notifier.Notify(ctx, note)
}

type syntheticSource struct {
	samples []storage.PriceSample
}

func (s *syntheticSource) LatestSample(_ context.Context, _ asset.Asset) (storage.PriceSample, error) {
	if len(s.samples) == 0 {
		return storage.PriceSample{}, storage.ErrNoSamples
	}
	return s.samples[len(s.samples)-1], nil
}

func (s *syntheticSource) ListSamplesBetween(_ context.Context, _ asset.Asset, from, to time.Time) ([]storage.PriceSample, error) {
	var out []storage.PriceSample
	for _, sample := range s.samples {
		if !sample.ObservedAt.Before(from) && !sample.ObservedAt.After(to) {
			out = append(out, sample)
		}
	}
	return out, nil
}

var _ detector.SampleSource = (*syntheticSource)(nil)
