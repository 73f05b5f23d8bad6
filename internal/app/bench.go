package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"market-hierarchy/internal/exchange"
	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/nano"
)

const benchExchanges = 8

// Bench resolves a generated snapshot set repeatedly; the first round is
// cold and later rounds are served from cache.
func (a *App) Bench(ctx context.Context, opts BenchOptions) error {
	if opts.Count <= 0 {
		return errors.New("--count must be greater than zero")
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 1
	}

	symbols := make([]string, 0, opts.Count/benchExchanges+1)
	for i := 0; len(symbols)*benchExchanges < opts.Count; i++ {
		symbols = append(symbols, fmt.Sprintf("SYM%04d", i))
	}
	exchanges := make([]string, benchExchanges)
	for i := range exchanges {
		exchanges[i] = fmt.Sprintf("exchange_%d", i)
	}

	sim := exchange.NewSimulated(exchange.SimulatedOptions{
		ID:        "bench",
		Seed:      a.Config.Exchange.Simulated.Seed,
		Exchanges: exchanges,
		Symbols:   symbols,
		Regions:   a.Config.Exchange.Simulated.Regions,
	})
	snaps, err := sim.FetchMarkets(ctx)
	if err != nil {
		return err
	}
	if len(snaps) > opts.Count {
		snaps = snaps[:opts.Count]
	}

	engineOpts := a.Config.EngineOptions()
	if opts.Workers > 0 {
		engineOpts.Workers = opts.Workers
	}
	if engineOpts.MaxSize < len(snaps) {
		engineOpts.MaxSize = len(snaps)
	}
	engine := hierarchy.New(sim, engineOpts, a.Logger)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Round\tResolved\tFailed\tElapsed(ms)\tThroughput(/s)\tHitRatio")
	for round := 1; round <= opts.Rounds; round++ {
		res, err := engine.ResolveBatch(ctx, snaps)
		if err != nil {
			return err
		}
		m := engine.Metrics()
		fmt.Fprintf(writer, "%d\t%d\t%d\t%.3f\t%.0f\t%.4f\n",
			round, res.Succeeded, res.Failed, nano.Millis(res.ElapsedNs), res.Throughput, m.CacheHitRatio)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	m := engine.Metrics()
	stats := engine.CacheStats()
	fmt.Fprintf(a.Out, "\nresolutions=%d hits=%d misses=%d avg_build=%.4fms nodes=%d cache=%d/%d\n",
		m.Resolutions, m.CacheHits, m.CacheMisses, m.AvgResolutionMs(), engine.TotalNodes(), stats.Size, stats.MaxSize)
	return nil
}
