package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const sampleColumns = `bucket_ts,
        exchange_id,
        resolutions,
        cache_hits,
        cache_misses,
        failures,
        traversals,
        total_nodes,
        cache_size,
        avg_resolution_ns,
        cache_hit_ratio,
        opportunities,
        status,
        error`

const (
	upsertMetricsSampleSQL = `INSERT INTO metrics_samples (
        ` + sampleColumns + `
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    )
    ON CONFLICT (bucket_ts, exchange_id) DO UPDATE
    SET
        resolutions       = EXCLUDED.resolutions,
        cache_hits        = EXCLUDED.cache_hits,
        cache_misses      = EXCLUDED.cache_misses,
        failures          = EXCLUDED.failures,
        traversals        = EXCLUDED.traversals,
        total_nodes       = EXCLUDED.total_nodes,
        cache_size        = EXCLUDED.cache_size,
        avg_resolution_ns = EXCLUDED.avg_resolution_ns,
        cache_hit_ratio   = EXCLUDED.cache_hit_ratio,
        opportunities     = EXCLUDED.opportunities,
        status            = EXCLUDED.status,
        error             = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        ` + sampleColumns + `,
        created_at
    FROM metrics_samples
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        ` + sampleColumns + `,
        created_at
    FROM metrics_samples
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM metrics_samples;`

	insertOpportunitySQL = `INSERT INTO opportunities (
        bucket_ts,
        kind,
        pair,
        exchange_a,
        exchange_b,
        spread_pct,
        threshold_pct,
        cross_region,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (bucket_ts, kind, pair, exchange_a, exchange_b) DO UPDATE
    SET spread_pct    = EXCLUDED.spread_pct,
        threshold_pct = EXCLUDED.threshold_pct,
        cross_region  = EXCLUDED.cross_region,
        channels      = EXCLUDED.channels
    RETURNING id, bucket_ts, kind, pair, exchange_a, exchange_b, spread_pct, threshold_pct, cross_region, channels, created_at;`

	listRecentOpportunitiesSQL = `SELECT
        id, bucket_ts, kind, pair, exchange_a, exchange_b, spread_pct, threshold_pct, cross_region, channels, created_at
    FROM opportunities
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteOpportunitiesBeforeSQL = `DELETE FROM opportunities WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for metrics sample persistence.
type SampleStore interface {
	UpsertMetricsSample(ctx context.Context, sample MetricsSample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricsSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]MetricsSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// OpportunityStore defines operations for opportunity auditing.
type OpportunityStore interface {
	InsertOpportunity(ctx context.Context, rec OpportunityRecord) (OpportunityRecord, error)
	ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error)
	DeleteOpportunitiesBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to metrics samples and opportunities.
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
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertMetricsSample persists or updates the sample for (bucket, exchange).
func (s *Store) UpsertMetricsSample(ctx context.Context, sample MetricsSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertMetricsSampleSQL,
		sample.Bucket,
		sample.ExchangeID,
		sample.Resolutions,
		sample.CacheHits,
		sample.CacheMisses,
		sample.Failures,
		sample.Traversals,
		sample.TotalNodes,
		sample.CacheSize,
		sample.AvgResolutionNs.String(),
		sample.CacheHitRatio.String(),
		sample.Opportunities,
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert metrics sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricsSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]MetricsSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertOpportunity persists an alerted opportunity.
func (s *Store) InsertOpportunity(ctx context.Context, rec OpportunityRecord) (OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return OpportunityRecord{}, err
	}

	row := pool.QueryRow(ctx, insertOpportunitySQL,
		rec.Bucket,
		rec.Kind,
		rec.Pair,
		rec.ExchangeA,
		rec.ExchangeB,
		rec.SpreadPct.String(),
		rec.ThresholdPct.String(),
		rec.CrossRegion,
		rec.Channels,
	)

	out, scanErr := scanOpportunity(row)
	if scanErr != nil {
		return OpportunityRecord{}, fmt.Errorf("insert opportunity: %w", scanErr)
	}
	return out, nil
}

// ListRecentOpportunities lists most recent opportunities.
func (s *Store) ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentOpportunitiesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", queryErr)
	}
	defer rows.Close()

	records := make([]OpportunityRecord, 0, limit)
	for rows.Next() {
		rec, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteOpportunitiesBefore deletes historical opportunities.
func (s *Store) DeleteOpportunitiesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteOpportunitiesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete opportunities before: %w", execErr)
	}
	return nil
}

func collectSamples(rows pgx.Rows, capacity int) ([]MetricsSample, error) {
	samples := make([]MetricsSample, 0, capacity)
	for rows.Next() {
		sample, err := scanMetricsSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanMetricsSample(row pgx.Row) (MetricsSample, error) {
	var (
		sample   MetricsSample
		avgStr   string
		ratioStr string
		errMsg   sql.NullString
	)

	if err := row.Scan(
		&sample.Bucket,
		&sample.ExchangeID,
		&sample.Resolutions,
		&sample.CacheHits,
		&sample.CacheMisses,
		&sample.Failures,
		&sample.Traversals,
		&sample.TotalNodes,
		&sample.CacheSize,
		&avgStr,
		&ratioStr,
		&sample.Opportunities,
		&sample.Status,
		&errMsg,
		&sample.CreatedAt,
	); err != nil {
		return MetricsSample{}, err
	}

	var err error
	if sample.AvgResolutionNs, err = decimal.NewFromString(avgStr); err != nil {
		return MetricsSample{}, fmt.Errorf("parse avg resolution: %w", err)
	}
	if sample.CacheHitRatio, err = decimal.NewFromString(ratioStr); err != nil {
		return MetricsSample{}, fmt.Errorf("parse cache hit ratio: %w", err)
	}
	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}
	return sample, nil
}

func scanOpportunity(row pgx.Row) (OpportunityRecord, error) {
	var (
		rec          OpportunityRecord
		spreadStr    string
		thresholdStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Bucket,
		&rec.Kind,
		&rec.Pair,
		&rec.ExchangeA,
		&rec.ExchangeB,
		&spreadStr,
		&thresholdStr,
		&rec.CrossRegion,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return OpportunityRecord{}, err
	}

	var err error
	if rec.SpreadPct, err = decimal.NewFromString(spreadStr); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse spread pct: %w", err)
	}
	if rec.ThresholdPct, err = decimal.NewFromString(thresholdStr); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse threshold pct: %w", err)
	}
	return rec, nil
}

var (
	_ SampleStore      = (*Store)(nil)
	_ OpportunityStore = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
