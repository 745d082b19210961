package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/asset"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNoSamples indicates no sample exists for the asset.
	ErrNoSamples = errors.New("storage: no samples for asset")
)

const (
	insertPriceSampleSQL = `INSERT INTO price_samples (asset, price, observed_at)
    VALUES ($1, $2, $3)
    ON CONFLICT (asset, observed_at) DO NOTHING;`

	listSamplesBetweenSQL = `SELECT asset, price::text, observed_at, created_at
    FROM price_samples
    WHERE asset = $1
      AND observed_at >= $2
      AND observed_at <= $3
    ORDER BY observed_at, id;`

	listRecentSamplesSQL = `SELECT asset, price::text, observed_at, created_at
    FROM price_samples
    WHERE asset = $1
    ORDER BY observed_at DESC, id DESC
    LIMIT $2;`

	latestSampleSQL = `SELECT asset, price::text, observed_at, created_at
    FROM price_samples
    WHERE asset = $1
    ORDER BY observed_at DESC, id DESC
    LIMIT 1;`

	countSamplesSQL = `SELECT COUNT(*) FROM price_samples WHERE asset = $1;`

	windowStatsSQL = `SELECT
        COUNT(*),
        COALESCE(MIN(price)::text, '0'),
        COALESCE(MAX(price)::text, '0'),
        COALESCE((SELECT price::text FROM price_samples
            WHERE asset = $1 AND observed_at >= $2 AND observed_at <= $3
            ORDER BY observed_at, id LIMIT 1), '0'),
        COALESCE((SELECT price::text FROM price_samples
            WHERE asset = $1 AND observed_at >= $2 AND observed_at <= $3
            ORDER BY observed_at DESC, id DESC LIMIT 1), '0')
    FROM price_samples
    WHERE asset = $1
      AND observed_at >= $2
      AND observed_at <= $3;`

	insertAlertSQL = `INSERT INTO alerts (asset, window_start, window_end, pct_change, threshold_pct, direction)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (asset, window_end) DO UPDATE
    SET window_start  = EXCLUDED.window_start,
        pct_change    = EXCLUDED.pct_change,
        threshold_pct = EXCLUDED.threshold_pct,
        direction     = EXCLUDED.direction
    RETURNING id, asset, window_start, window_end, pct_change::text, threshold_pct::text, direction, created_at;`

	listRecentAlertsSQL = `SELECT id, asset, window_start, window_end, pct_change::text, threshold_pct::text, direction, created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceSampleStore defines the time-series contract: idempotent append,
// ordered window queries, and the latest-sample read used for staleness
// checks.
type PriceSampleStore interface {
	InsertPriceSample(ctx context.Context, sample PriceSample) (bool, error)
	ListSamplesBetween(ctx context.Context, a asset.Asset, from, to time.Time) ([]PriceSample, error)
	ListRecentSamples(ctx context.Context, a asset.Asset, limit int) ([]PriceSample, error)
	LatestSample(ctx context.Context, a asset.Asset) (PriceSample, error)
	CountSamples(ctx context.Context, a asset.Asset) (int64, error)
	WindowStats(ctx context.Context, a asset.Asset, from, to time.Time) (WindowStats, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers used to keep concurrent
// watcher instances from double-polling.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertPriceSample appends a sample. The (asset, observed_at) key is
// unique, so re-appending after a crash is a no-op; the bool reports
// whether a new row was written.
func (s *Store) InsertPriceSample(ctx context.Context, sample PriceSample) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, insertPriceSampleSQL,
		sample.Asset.String(),
		sample.Price.String(),
		sample.ObservedAt,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert price sample: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSamplesBetween lists samples within [from, to], ascending by
// observed_at. Equal timestamps order by insertion (id), so the later
// insertion is the representative sample at a window boundary.
func (s *Store) ListSamplesBetween(ctx context.Context, a asset.Asset, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, a.String(), from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentSamples lists the newest samples for one asset, descending.
func (s *Store) ListRecentSamples(ctx context.Context, a asset.Asset, limit int) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, a.String(), limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// LatestSample returns the newest sample for an asset, or ErrNoSamples.
func (s *Store) LatestSample(ctx context.Context, a asset.Asset) (PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceSample{}, err
	}

	rows, queryErr := pool.Query(ctx, latestSampleSQL, a.String())
	if queryErr != nil {
		return PriceSample{}, fmt.Errorf("latest sample: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return PriceSample{}, rows.Err()
		}
		return PriceSample{}, ErrNoSamples
	}
	return scanPriceSample(rows)
}

// CountSamples counts stored samples for one asset.
func (s *Store) CountSamples(ctx context.Context, a asset.Asset) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL, a.String()).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// WindowStats summarises samples within [from, to] for one asset.
func (s *Store) WindowStats(ctx context.Context, a asset.Asset, from, to time.Time) (WindowStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return WindowStats{}, err
	}

	var (
		stats             = WindowStats{Asset: a}
		lowStr, highStr   string
		firstStr, lastStr string
	)
	row := pool.QueryRow(ctx, windowStatsSQL, a.String(), from, to)
	if scanErr := row.Scan(&stats.Samples, &lowStr, &highStr, &firstStr, &lastStr); scanErr != nil {
		return WindowStats{}, fmt.Errorf("window stats: %w", scanErr)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&stats.Low, lowStr},
		{&stats.High, highStr},
		{&stats.First, firstStr},
		{&stats.Last, lastStr},
	} {
		value, convErr := decimal.NewFromString(field.raw)
		if convErr != nil {
			return WindowStats{}, fmt.Errorf("parse window stats: %w", convErr)
		}
		*field.dst = value
	}
	return stats, nil
}

// InsertAlert persists an alert emission. Re-inserting the same
// (asset, window_end) pair updates in place.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.Asset.String(),
		alert.WindowStart,
		alert.WindowEnd,
		alert.PctChange.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
	)

	rec, scanErr := scanAlertRecord(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts across all assets.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]PriceSample, error) {
	samples := make([]PriceSample, 0, sizeHint)
	for rows.Next() {
		sample, scanErr := scanPriceSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanPriceSample(row pgx.Row) (PriceSample, error) {
	var (
		assetStr   string
		priceStr   string
		observedAt time.Time
		createdAt  time.Time
	)
	if err := row.Scan(&assetStr, &priceStr, &observedAt, &createdAt); err != nil {
		return PriceSample{}, err
	}

	a, err := asset.Parse(assetStr)
	if err != nil {
		return PriceSample{}, fmt.Errorf("parse stored asset: %w", err)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PriceSample{}, fmt.Errorf("parse stored price: %w", err)
	}

	return PriceSample{
		Asset:      a,
		Price:      price,
		ObservedAt: observedAt,
		CreatedAt:  createdAt,
	}, nil
}

func scanAlertRecord(row pgx.Row) (AlertRecord, error) {
	var (
		rec          AlertRecord
		assetStr     string
		pctStr       string
		thresholdStr string
	)
	if err := row.Scan(
		&rec.ID,
		&assetStr,
		&rec.WindowStart,
		&rec.WindowEnd,
		&pctStr,
		&thresholdStr,
		&rec.Direction,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	a, err := asset.Parse(assetStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse stored asset: %w", err)
	}
	rec.Asset = a

	rec.PctChange, err = decimal.NewFromString(pctStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse pct change: %w", err)
	}
	rec.ThresholdPct, err = decimal.NewFromString(thresholdStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", err)
	}

	return rec, nil
}
