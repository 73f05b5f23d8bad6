package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-hierarchy/internal/alerting"
	"market-hierarchy/internal/config"
	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/scheduler"
	"market-hierarchy/internal/storage"
)

const (
	statusComplete = "complete"
	statusPartial  = "partial"
	statusErrored  = "errored"
)

// Engine is the part of *hierarchy.Engine the service drives.
type Engine interface {
	ExchangeID() string
	Refresh(ctx context.Context) (hierarchy.BatchResult, error)
	PruneExpired() int
	Metrics() hierarchy.Metrics
	CacheStats() hierarchy.CacheStats
	TotalNodes() uint64
}

// Service refreshes the engine every bucket, records metrics and alerts on
// arbitrage.
type Service struct {
	scheduler *scheduler.Scheduler
	engine    Engine
	store     storage.SampleStore
	oppStore  storage.OpportunityStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	minSpread float64
	cooldown  time.Duration
	channels  []string
	alertsOn  bool
	locker    storage.AdvisoryLocker
	lockKey   int64

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

// New constructs the refresh service. store, oppStore and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, engine Engine, store storage.SampleStore, oppStore storage.OpportunityStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		engine:    engine,
		store:     store,
		oppStore:  oppStore,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		minSpread: cfg.Alerting.MinSpread,
		cooldown:  cfg.Alerting.Cooldown,
		channels:  cfg.Alerting.Channels,
		alertsOn:  cfg.Alerting.Enabled,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		lastAlert: make(map[string]time.Time),
	}
}

// Run begins the scheduled refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的刷新逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	result, err := s.engine.Refresh(ctx)
	if err != nil {
		msg := err.Error()
		sample := s.sample(bucket, 0)
		sample.Status = statusErrored
		sample.Error = &msg
		s.persist(ctx, sample)
		return fmt.Errorf("refresh engine: %w", err)
	}

	pruned := s.engine.PruneExpired()
	opps := dedupe(result.Opportunities())

	sample := s.sample(bucket, len(opps))
	if result.Failed > 0 {
		sample.Status = statusPartial
		for _, item := range result.Items {
			if item.Err != nil {
				s.logger.Warn().Err(item.Err).Int("index", item.Index).Msg("snapshot rejected")
			}
		}
	}
	s.persist(ctx, sample)

	s.logger.Info().Time("bucket", bucket).
		Int("resolved", result.Succeeded).
		Int("failed", result.Failed).
		Int("pruned", pruned).
		Int("opportunities", len(opps)).
		Str("hit_ratio", sample.CacheHitRatio.StringFixed(4)).
		Str("avg_resolution_ns", sample.AvgResolutionNs.String()).
		Msg("bucket refreshed")

	s.alert(ctx, bucket, opps)
	return nil
}

func (s *Service) sample(bucket time.Time, opportunities int) storage.MetricsSample {
	m := s.engine.Metrics()
	stats := s.engine.CacheStats()
	return storage.MetricsSample{
		Bucket:          bucket,
		ExchangeID:      s.engine.ExchangeID(),
		Resolutions:     int64(m.Resolutions),
		CacheHits:       int64(m.CacheHits),
		CacheMisses:     int64(m.CacheMisses),
		Failures:        int64(m.Failures),
		Traversals:      int64(m.Traversals),
		TotalNodes:      int64(s.engine.TotalNodes()),
		CacheSize:       stats.Size,
		AvgResolutionNs: decimal.NewFromInt(int64(m.AvgResolutionNs)),
		CacheHitRatio:   decimal.NewFromFloat(m.CacheHitRatio),
		Opportunities:   opportunities,
		Status:          statusComplete,
		CreatedAt:       time.Now().UTC(),
	}
}

func (s *Service) persist(ctx context.Context, sample storage.MetricsSample) {
	if s.store == nil {
		return
	}
	if err := s.store.UpsertMetricsSample(ctx, sample); err != nil {
		s.logger.Error().Err(err).Time("bucket", sample.Bucket).Msg("failed to upsert sample")
	}
}

func (s *Service) alert(ctx context.Context, bucket time.Time, opps []hierarchy.Opportunity) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	for _, opp := range opps {
		if opp.Spread <= s.minSpread {
			continue
		}
		note := alerting.NewNotification(bucket, opp, s.minSpread, s.channels)
		if !s.cooledDown(note.Key(), bucket) {
			s.logger.Debug().Str("key", note.Key()).Msg("alert suppressed by cooldown")
			continue
		}

		if s.oppStore != nil {
			record := storage.OpportunityRecord{
				Bucket:       bucket,
				Kind:         note.Kind,
				Pair:         note.Pair,
				ExchangeA:    note.ExchangeA,
				ExchangeB:    note.ExchangeB,
				SpreadPct:    note.SpreadPct,
				ThresholdPct: note.ThresholdPct,
				CrossRegion:  note.CrossRegion,
				Channels:     s.channels,
			}
			if _, err := s.oppStore.InsertOpportunity(ctx, record); err != nil {
				s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist opportunity record")
			}
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
		}
	}
}

// cooledDown reports whether key may alert at bucket and, if so, records it.
func (s *Service) cooledDown(key string, bucket time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAlert[key]; ok && bucket.Sub(last) < s.cooldown {
		return false
	}
	s.lastAlert[key] = bucket
	return true
}

// dedupe drops repeats of the same opportunity reported by several
// hierarchies, keeping the first.
func dedupe(opps []hierarchy.Opportunity) []hierarchy.Opportunity {
	seen := make(map[string]struct{}, len(opps))
	out := opps[:0]
	for _, o := range opps {
		k := o.Kind + "|" + o.Pair + "|" + o.ExchangeA + "|" + o.ExchangeB
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
