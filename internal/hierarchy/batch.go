package hierarchy

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"market-hierarchy/internal/nano"
)

// BatchItem is the outcome of one snapshot in a batch.
type BatchItem struct {
	Index      int
	Resolution Resolution
	Err        error
}

// BatchResult summarises a bulk resolution.
type BatchResult struct {
	Items      []BatchItem
	Succeeded  int
	Failed     int
	ElapsedNs  uint64
	Throughput float64
}

// Opportunities collects the arbitrage of every successful item.
func (r BatchResult) Opportunities() []Opportunity {
	out := make([]Opportunity, 0)
	for _, item := range r.Items {
		if item.Err == nil {
			out = append(out, item.Resolution.Arbitrage...)
		}
	}
	return out
}

// ResolveBatch resolves every snapshot independently. Snapshots of the same
// (exchange, market) stay on one worker in input order; distinct markets
// fan out across Options.Workers goroutines. Item failures are reported in
// Items and do not stop the batch; only ctx cancellation does.
func (e *Engine) ResolveBatch(ctx context.Context, snapshots []MarketSnapshot) (BatchResult, error) {
	result := BatchResult{Items: make([]BatchItem, len(snapshots))}
	if len(snapshots) == 0 {
		return result, nil
	}

	workers := e.opts.Workers
	if workers > len(snapshots) {
		workers = len(snapshots)
	}
	shards := make([][]int, workers)
	for i, s := range snapshots {
		shard := int(xxhash.Sum64String(s.key()) % uint64(workers))
		shards[shard] = append(shards[shard], i)
	}

	start := e.clock.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			for _, idx := range shard {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := e.CreateMarketHierarchy(snapshots[idx])
				result.Items[idx] = BatchItem{Index: idx, Resolution: res, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	result.ElapsedNs = latency(e.clock, start)
	for _, item := range result.Items {
		if item.Err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	result.Throughput = float64(len(snapshots)) / (float64(result.ElapsedNs) / float64(time.Second))

	e.logger.Debug().
		Int("count", len(snapshots)).
		Int("failed", result.Failed).
		Float64("elapsed_ms", nano.Millis(result.ElapsedNs)).
		Float64("per_second", result.Throughput).
		Msg("batch resolved")
	return result, nil
}
