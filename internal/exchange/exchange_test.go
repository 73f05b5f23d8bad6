package exchange

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-hierarchy/internal/hierarchy"
)

func TestStaticFillsExchangeID(t *testing.T) {
	s := NewStatic("ex", []hierarchy.MarketSnapshot{{MarketID: "BTC", Price: 1}})
	snaps, err := s.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ExchangeID != "ex" {
		t.Fatalf("缺省 exchangeId 应继承适配器 ID: %+v", snaps)
	}

	snaps[0].Price = 99
	again, _ := s.FetchMarkets(context.Background())
	if again[0].Price != 1 {
		t.Fatal("返回值应为副本")
	}
}

func TestStaticCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStatic("ex", nil).FetchMarkets(ctx); err == nil {
		t.Fatal("已取消的 context 应报错")
	}
}

func TestParseYAMLList(t *testing.T) {
	doc := `
- exchangeId: a
  marketId: BTC
  price: 100.5
  volume: 2
  regionId: us
  timestamp: 2024-01-01T00:00:00Z
- marketId: ETH
  price: 10
  volume: 1
`
	snaps, err := ParseYAML("fallback", []byte(doc))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("期望 2 条, 实际 %d", len(snaps))
	}
	if snaps[0].ExchangeID != "a" || snaps[0].Price != 100.5 || snaps[0].RegionID != "us" {
		t.Fatalf("第一条解析错误: %+v", snaps[0])
	}
	if !snaps[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("时间戳解析错误: %v", snaps[0].Timestamp)
	}
	if snaps[1].ExchangeID != "fallback" {
		t.Fatalf("缺省 exchangeId 应为 fallback, 实际 %s", snaps[1].ExchangeID)
	}
}

func TestFileDocumentWithSports(t *testing.T) {
	doc := `
exchangeId: book
markets:
  - marketId: m1
    category: sports
    price: 2.1
    volume: 500
    sports:
      sport: soccer
      homeTeamId: h
      awayTeamId: a
      homeOdds: 2.1
      awayOdds: 1.8
      status: open
`
	path := filepath.Join(t.TempDir(), "snapshots.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	f := NewFile("file", path)
	snaps, err := f.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("期望 1 条, 实际 %d", len(snaps))
	}
	s := snaps[0]
	if s.ExchangeID != "book" || s.Sports == nil || s.Sports.AwayOdds != 1.8 {
		t.Fatalf("体育盘口解析错误: %+v", s)
	}
}

func TestFileMissing(t *testing.T) {
	f := NewFile("file", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := f.FetchMarkets(context.Background()); err == nil {
		t.Fatal("文件不存在应报错")
	}
}

func TestSimulatedDeterministic(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := SimulatedOptions{
		Seed:      7,
		Exchanges: []string{"a", "b"},
		Symbols:   []string{"BTC", "ETH"},
		Regions:   []string{"us", "eu"},
		Fixtures:  1,
		Now:       func() time.Time { return fixed },
	}
	first, err := NewSimulated(opts).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	second, _ := NewSimulated(opts).FetchMarkets(context.Background())

	// 2 exchanges × (2 symbols + 1 fixture)
	if len(first) != 6 {
		t.Fatalf("期望 6 条快照, 实际 %d", len(first))
	}
	for i := range first {
		if first[i].Price != second[i].Price {
			t.Fatalf("相同种子应产生相同价格: %v vs %v", first[i].Price, second[i].Price)
		}
	}

	var sports int
	for _, s := range first {
		if s.Price <= 0 || s.Volume < 0 {
			t.Fatalf("非法报价: %+v", s)
		}
		if s.Category == "sports" {
			sports++
			if s.Sports == nil || s.Sports.HomeOdds <= 1 || s.Sports.AwayOdds <= 1 {
				t.Fatalf("体育赔率非法: %+v", s.Sports)
			}
		}
	}
	if sports != 2 {
		t.Fatalf("期望 2 条体育快照, 实际 %d", sports)
	}
	if first[0].RegionID != "us" || first[3].RegionID != "eu" {
		t.Fatalf("区域应按交易所轮转: %s %s", first[0].RegionID, first[3].RegionID)
	}
}

func TestSimulatedFeedsEngine(t *testing.T) {
	sim := NewSimulated(SimulatedOptions{
		Seed:      1,
		Exchanges: []string{"a", "b", "c"},
		Symbols:   []string{"BTC"},
		Fixtures:  2,
	})
	engine := hierarchy.New(sim, hierarchy.Options{}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		res, err := engine.Refresh(context.Background())
		if err != nil {
			t.Fatalf("刷新失败: %v", err)
		}
		if res.Failed != 0 {
			t.Fatalf("模拟快照不应解析失败: %+v", res.Items)
		}
	}
	if m := engine.Metrics(); m.Resolutions != 27 {
		t.Fatalf("期望 27 次解析, 实际 %d", m.Resolutions)
	}
}

func TestOnChainMissingConfig(t *testing.T) {
	oc := NewOnChain(OnChainOptions{ID: "vault"}, zerolog.Nop())
	if _, err := oc.FetchMarkets(context.Background()); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}

	oc = NewOnChain(OnChainOptions{ID: "vault", RPCURL: "http://localhost"}, zerolog.Nop())
	if _, _, err := oc.FetchRate(context.Background()); err == nil {
		t.Fatal("缺少合约地址应报错")
	}
}
