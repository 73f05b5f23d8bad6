package app

import (
	"context"
	"errors"
	"fmt"

	"market-hierarchy/internal/nano"
)

// Latency measures the probe round trip between two exchanges.
func (a *App) Latency(ctx context.Context, exchangeA, exchangeB string) error {
	if exchangeA == "" || exchangeB == "" {
		return errors.New("--a and --b must be provided")
	}
	if len(a.Config.Exchange.ProbeURLs) == 0 {
		return errors.New("exchange.probe_urls 未配置")
	}

	engine := a.newEngine(nil)
	ns, err := engine.Arbitrage().MeasureLatency(ctx, exchangeA, exchangeB)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s <-> %s: %.3fms (%dns)\n", exchangeA, exchangeB, nano.Millis(ns), ns)
	return nil
}
