package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/storage"
)

// Direction of a volatility spike.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// AlertEvent describes a volatility spike across a trailing window.
type AlertEvent struct {
	Asset       asset.Asset
	WindowStart time.Time
	WindowEnd   time.Time
	Baseline    decimal.Decimal
	Current     decimal.Decimal
	PctChange   decimal.Decimal
	Direction   Direction
}

// SampleSource is the slice of the store the detector reads from.
type SampleSource interface {
	LatestSample(ctx context.Context, a asset.Asset) (storage.PriceSample, error)
	ListSamplesBetween(ctx context.Context, a asset.Asset, from, to time.Time) ([]storage.PriceSample, error)
}

// Detector classifies trailing-window price change against a threshold.
// It holds no history of its own: every call derives the outcome from
// store contents, so it is safe to share across assets and ticks.
type Detector struct {
	source    SampleSource
	window    time.Duration
	threshold decimal.Decimal
	logger    zerolog.Logger
}

// New constructs a Detector.
func New(source SampleSource, window time.Duration, thresholdPct float64, logger zerolog.Logger) *Detector {
	return &Detector{
		source:    source,
		window:    window,
		threshold: decimal.NewFromFloat(thresholdPct),
		logger:    logger.With().Str("component", "detector").Logger(),
	}
}

// Detect evaluates the trailing window ending at the latest stored
// sample. A nil event means no spike: either the change stayed below
// the threshold or fewer than two samples exist in the window. Gaps
// from skipped ticks are expected and not an error.
func (d *Detector) Detect(ctx context.Context, a asset.Asset) (*AlertEvent, error) {
	latest, err := d.source.LatestSample(ctx, a)
	if err != nil {
		if errors.Is(err, storage.ErrNoSamples) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest sample: %w", err)
	}

	windowEnd := latest.ObservedAt
	windowStart := windowEnd.Add(-d.window)

	samples, err := d.source.ListSamplesBetween(ctx, a, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("list window samples: %w", err)
	}
	if len(samples) < 2 {
		d.logger.Debug().Str("asset", a.String()).Int("samples", len(samples)).Msg("insufficient data in window")
		return nil, nil
	}

	baseline := samples[0]
	current := samples[len(samples)-1]
	if baseline.Price.IsZero() {
		return nil, fmt.Errorf("baseline price is zero for %s at %s", a, baseline.ObservedAt)
	}

	pct := current.Price.Sub(baseline.Price).Div(baseline.Price).Mul(decimal.NewFromInt(100))
	if pct.Abs().LessThan(d.threshold) {
		return nil, nil
	}

	direction := DirectionDown
	if pct.Sign() > 0 {
		direction = DirectionUp
	}

	return &AlertEvent{
		Asset:       a,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Baseline:    baseline.Price,
		Current:     current.Price,
		PctChange:   pct,
		Direction:   direction,
	}, nil
}
