package nano

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFindArbitrageThreshold(t *testing.T) {
	arb := NewArbitrage(ArbitrageOptions{}, zerolog.Nop())
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 4; i++ {
		price := 50000 + (rng.Float64()*2-1)*1000
		if err := arb.UpdatePrice("BTC", fmt.Sprintf("exchange_%d", i), price, 1, "us"); err != nil {
			t.Fatalf("UpdatePrice 失败: %v", err)
		}
	}

	opps := arb.FindArbitrage("BTC", 0.001)
	if opps == nil {
		t.Fatal("应返回数组而不是 nil")
	}
	for i, opp := range opps {
		if opp.Spread <= 0.001 {
			t.Fatalf("价差 %f 低于阈值", opp.Spread)
		}
		if i > 0 && opps[i-1].Spread < opp.Spread {
			t.Fatal("结果应按价差降序排列")
		}
	}
}

func TestFindArbitrageSpreadAndTieBreak(t *testing.T) {
	arb := NewArbitrage(ArbitrageOptions{}, zerolog.Nop())
	_ = arb.UpdatePrice("ETH", "a", 100, 1, "eu")
	_ = arb.UpdatePrice("ETH", "b", 110, 1, "us")
	_ = arb.UpdatePrice("ETH", "c", 110, 1, "us")

	opps := arb.FindArbitrage("ETH", 0.05)
	if len(opps) != 2 {
		t.Fatalf("应有 2 个机会, 实际 %+v", opps)
	}
	if opps[0].ExchangeA != "a" || opps[0].ExchangeB != "b" || opps[1].ExchangeB != "c" {
		t.Fatalf("等价差应保持首见顺序: %+v", opps)
	}
	if opps[0].Spread != 0.1 {
		t.Fatalf("价差应为 (110-100)/100, 实际 %f", opps[0].Spread)
	}
	if !opps[0].CrossRegion() || opps[0].BuyOn() != "a" {
		t.Fatalf("跨区域/买入方向错误: %+v", opps[0])
	}

	if got := arb.FindArbitrage("ETH", 0.2); len(got) != 0 {
		t.Fatalf("阈值之上不应有机会: %+v", got)
	}
	if got := arb.FindArbitrage("DOGE", 0); len(got) != 0 {
		t.Fatal("未知 symbol 应返回空")
	}
}

func TestUpdatePriceOverwritesLatest(t *testing.T) {
	arb := NewArbitrage(ArbitrageOptions{}, zerolog.Nop())
	_ = arb.UpdatePrice("SOL", "x", 10, 1, "")
	_ = arb.UpdatePrice("SOL", "y", 11, 1, "")
	_ = arb.UpdatePrice("SOL", "x", 11, 2, "")

	levels := arb.Levels("SOL")
	if len(levels) != 2 || levels[0].Exchange != "x" || levels[0].Price != 11 {
		t.Fatalf("应覆盖旧价格并保持顺序: %+v", levels)
	}
	if opps := arb.FindArbitrage("SOL", 0); len(opps) != 0 {
		t.Fatalf("价格相同时不应有机会: %+v", opps)
	}
	if err := arb.UpdatePrice("SOL", "z", 0, 1, ""); err == nil {
		t.Fatal("价格为 0 应报错")
	}
}

func TestMeasureLatency(t *testing.T) {
	clock := NewManualClock(1)
	prober := ProberFunc(func(ctx context.Context, exchange string) error {
		clock.Advance(3 * time.Millisecond)
		return nil
	})
	arb := NewArbitrage(ArbitrageOptions{Clock: clock, Prober: prober}, zerolog.Nop())

	ns, err := arb.MeasureLatency(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("MeasureLatency 失败: %v", err)
	}
	if ns != uint64(6*time.Millisecond) {
		t.Fatalf("期望 6ms, 实际 %dns", ns)
	}
}

func TestMeasureLatencyNeverZeroAndPropagatesErrors(t *testing.T) {
	arb := NewArbitrage(ArbitrageOptions{Clock: NewManualClock(0)}, zerolog.Nop())
	ns, err := arb.MeasureLatency(context.Background(), "a", "b")
	if err != nil || ns == 0 {
		t.Fatalf("延迟应 > 0: %d %v", ns, err)
	}

	boom := errors.New("boom")
	failing := NewArbitrage(ArbitrageOptions{Prober: ProberFunc(func(context.Context, string) error { return boom })}, zerolog.Nop())
	if _, err := failing.MeasureLatency(context.Background(), "a", "b"); !errors.Is(err, boom) {
		t.Fatalf("应透传探测错误: %v", err)
	}
}

func TestMeasureLatencyAboveCeilingStillReturns(t *testing.T) {
	clock := NewManualClock(0)
	prober := ProberFunc(func(context.Context, string) error {
		clock.Advance(time.Second)
		return nil
	})
	arb := NewArbitrage(ArbitrageOptions{Clock: clock, Prober: prober, LatencyCeiling: time.Millisecond}, zerolog.Nop())
	ns, err := arb.MeasureLatency(context.Background(), "a", "b")
	if err != nil || ns != uint64(2*time.Second) {
		t.Fatalf("超过上限只告警不失败: %d %v", ns, err)
	}
}
