package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"market-hierarchy/internal/exchange"
	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/nano"
	"market-hierarchy/internal/service"
)

// SimulateAlert 用两个交易所的给定价格模拟一次套利告警流程。
func (a *App) SimulateAlert(ctx context.Context, priceA, priceB decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier, closeNotifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	defer closeNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	pa, _ := priceA.Float64()
	pb, _ := priceB.Float64()
	if spread := nano.Spread(pa, pb); spread <= a.Config.Alerting.MinSpread {
		return errors.New("价差未超过 alerting.min_spread，不会触发告警")
	}

	now := time.Now().UTC()
	ex := exchange.NewStatic("simulated", []hierarchy.MarketSnapshot{
		{ExchangeID: "sim_a", MarketID: "SIM", Price: pa, Volume: 1, RegionID: "us", Timestamp: now},
		{ExchangeID: "sim_b", MarketID: "SIM", Price: pb, Volume: 1, RegionID: "eu", Timestamp: now},
	})
	engine := a.newEngine(ex)

	svc := service.New(a.Config, nil, engine, nil, nil, notifier, a.Logger)

	bucket := now.Truncate(a.Config.Scheduler.Interval)
	return svc.ProcessBucket(ctx, bucket)
}
