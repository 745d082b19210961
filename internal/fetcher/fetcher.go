package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/asset"
)

// Quote is a single observed price for an asset.
type Quote struct {
	Asset      asset.Asset
	Price      decimal.Decimal
	Currency   string
	ObservedAt time.Time
}

// QuoteFetcher retrieves the current price for a single asset.
type QuoteFetcher interface {
	Fetch(ctx context.Context, a asset.Asset) (Quote, error)
}

// HistoryFetcher retrieves historical prices for backfill.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, a asset.Asset, from, to time.Time) ([]Quote, error)
}
