package detector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/storage"
)

type fakeSource struct {
	samples map[asset.Asset][]storage.PriceSample
}

func (f *fakeSource) LatestSample(_ context.Context, a asset.Asset) (storage.PriceSample, error) {
	all := f.samples[a]
	if len(all) == 0 {
		return storage.PriceSample{}, storage.ErrNoSamples
	}
	return all[len(all)-1], nil
}

func (f *fakeSource) ListSamplesBetween(_ context.Context, a asset.Asset, from, to time.Time) ([]storage.PriceSample, error) {
	var out []storage.PriceSample
	for _, s := range f.samples[a] {
		if !s.ObservedAt.Before(from) && !s.ObservedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func sampleAt(a asset.Asset, price float64, at time.Time) storage.PriceSample {
	return storage.PriceSample{Asset: a, Price: decimal.NewFromFloat(price), ObservedAt: at}
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDetectSpikeUp(t *testing.T) {
	source := &fakeSource{samples: map[asset.Asset][]storage.PriceSample{
		asset.BTC: {
			sampleAt(asset.BTC, 100, t0),
			sampleAt(asset.BTC, 100.5, t0.Add(time.Minute)),
			sampleAt(asset.BTC, 103, t0.Add(4*time.Minute)),
		},
	}}

	d := New(source, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.BTC)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, DirectionUp, event.Direction)
	assert.True(t, event.PctChange.Equal(decimal.NewFromInt(3)), "pct_change = %s", event.PctChange)
	assert.Equal(t, t0.Add(4*time.Minute), event.WindowEnd)
	assert.Equal(t, t0.Add(-time.Minute), event.WindowStart)
}

func TestDetectSpikeDown(t *testing.T) {
	source := &fakeSource{samples: map[asset.Asset][]storage.PriceSample{
		asset.ETH: {
			sampleAt(asset.ETH, 200, t0),
			sampleAt(asset.ETH, 195, t0.Add(3*time.Minute)),
		},
	}}

	d := New(source, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.ETH)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, DirectionDown, event.Direction)
	assert.True(t, event.PctChange.Equal(decimal.NewFromFloat(-2.5)), "pct_change = %s", event.PctChange)
}

func TestDetectBelowThreshold(t *testing.T) {
	source := &fakeSource{samples: map[asset.Asset][]storage.PriceSample{
		asset.BTC: {
			sampleAt(asset.BTC, 100, t0),
			sampleAt(asset.BTC, 101, t0.Add(4*time.Minute)),
		},
	}}

	d := New(source, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.BTC)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestDetectThresholdInclusive(t *testing.T) {
	source := &fakeSource{samples: map[asset.Asset][]storage.PriceSample{
		asset.BTC: {
			sampleAt(asset.BTC, 100, t0),
			sampleAt(asset.BTC, 102, t0.Add(4*time.Minute)),
		},
	}}

	d := New(source, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.BTC)
	require.NoError(t, err)
	require.NotNil(t, event, "pct_change exactly at threshold must alert")
}

func TestDetectInsufficientData(t *testing.T) {
	source := &fakeSource{samples: map[asset.Asset][]storage.PriceSample{
		asset.XRP: {sampleAt(asset.XRP, 0.6, t0)},
	}}

	d := New(source, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.XRP)
	require.NoError(t, err, "single sample is not an error")
	assert.Nil(t, event)
}

func TestDetectNoSamples(t *testing.T) {
	d := New(&fakeSource{samples: map[asset.Asset][]storage.PriceSample{}}, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.BTC)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestDetectIgnoresSamplesOutsideWindow(t *testing.T) {
	// A wild swing an hour ago must not count against the trailing window.
	source := &fakeSource{samples: map[asset.Asset][]storage.PriceSample{
		asset.BTC: {
			sampleAt(asset.BTC, 50, t0.Add(-time.Hour)),
			sampleAt(asset.BTC, 100, t0),
			sampleAt(asset.BTC, 100.2, t0.Add(4*time.Minute)),
		},
	}}

	d := New(source, 5*time.Minute, 2.0, zerolog.Nop())
	event, err := d.Detect(context.Background(), asset.BTC)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestSuppressorDeduplicates(t *testing.T) {
	s := NewSuppressor(5 * time.Minute)

	first := AlertEvent{Asset: asset.BTC, Direction: DirectionUp, WindowEnd: t0.Add(4 * time.Minute)}
	assert.True(t, s.Allow(first))

	// Same asset/direction 30s later: suppressed.
	repeat := first
	repeat.WindowEnd = t0.Add(4*time.Minute + 30*time.Second)
	assert.False(t, s.Allow(repeat))

	// Opposite direction is independent.
	down := AlertEvent{Asset: asset.BTC, Direction: DirectionDown, WindowEnd: t0.Add(5 * time.Minute)}
	assert.True(t, s.Allow(down))

	// Another asset is independent.
	eth := AlertEvent{Asset: asset.ETH, Direction: DirectionUp, WindowEnd: t0.Add(5 * time.Minute)}
	assert.True(t, s.Allow(eth))

	// After a full window has elapsed the same asset/direction may fire again.
	later := first
	later.WindowEnd = t0.Add(9*time.Minute + 30*time.Second)
	assert.True(t, s.Allow(later))
}
