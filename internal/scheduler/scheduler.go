package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per bucket.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// RunOnStart fires one tick for the current bucket before waiting.
	RunOnStart bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler drives bucketed refreshes of the hierarchy engine.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick at each interval until ctx is cancelled. Tick
// errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunOnStart {
		s.fire(ctx, tick, s.bucketStart(s.now()))
	}

	next := s.nextTick(s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			skipped := s.nextTick(s.now())
			s.logger.Warn().Time("missed", next).Time("next_bucket", skipped).Msg("tick overran interval, skipping buckets")
			next = skipped
			delay = next.Sub(s.now())
		}

		s.logger.Debug().Time("next_bucket", next).Dur("delay", delay).Msg("waiting for next bucket")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		s.fire(ctx, tick, s.bucketStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc, bucket time.Time) {
	s.logger.Debug().Time("bucket", bucket).Msg("executing scheduled tick")
	if err := tick(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
	}
}

func (s *Scheduler) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
