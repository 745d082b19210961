package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/asset"
)

// PriceSample is one persisted price observation. Samples are
// append-only and immutable once stored.
type PriceSample struct {
	Asset      asset.Asset
	Price      decimal.Decimal
	ObservedAt time.Time
	CreatedAt  time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID           int64
	Asset        asset.Asset
	WindowStart  time.Time
	WindowEnd    time.Time
	PctChange    decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	CreatedAt    time.Time
}

// WindowStats summarises stored samples over a time window.
type WindowStats struct {
	Asset   asset.Asset
	Samples int64
	Low     decimal.Decimal
	High    decimal.Decimal
	First   decimal.Decimal
	Last    decimal.Decimal
}

// ChangePct returns the percentage change from First to Last, or zero
// when the window holds no usable baseline.
func (w WindowStats) ChangePct() decimal.Decimal {
	if w.Samples < 2 || w.First.IsZero() {
		return decimal.Zero
	}
	return w.Last.Sub(w.First).Div(w.First).Mul(decimal.NewFromInt(100))
}
