package hierarchy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-hierarchy/internal/nano"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *nano.ManualClock) {
	t.Helper()
	clock := nano.NewManualClock(1)
	opts.Clock = clock
	return New(nil, opts, zerolog.Nop()), clock
}

func spot(exchange, market string, price, volume float64) MarketSnapshot {
	return MarketSnapshot{ExchangeID: exchange, MarketID: market, Price: price, Volume: volume, RegionID: "us"}
}

func TestRepeatedSnapshotHitsCache(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	snap := spot("binance", "BTC", 50000, 2)

	first, err := engine.CreateMarketHierarchy(snap)
	if err != nil {
		t.Fatalf("首次解析失败: %v", err)
	}
	second, err := engine.CreateMarketHierarchy(snap)
	if err != nil {
		t.Fatalf("二次解析失败: %v", err)
	}

	if first.Cached || !second.Cached {
		t.Fatalf("第一次应 miss, 第二次应 hit: %v %v", first.Cached, second.Cached)
	}
	if first.RootID != second.RootID || first.MarketID != second.MarketID {
		t.Fatalf("命中缓存应返回相同 rootId/marketId")
	}
	if second.LatencyNs == 0 {
		t.Fatal("latencyNs 应 > 0")
	}

	m := engine.Metrics()
	if m.CacheHits != 1 || m.CacheMisses != 1 || m.Resolutions != 2 {
		t.Fatalf("计数错误: %+v", m)
	}
	if m.CacheHitRatio != 0.5 {
		t.Fatalf("命中率应为 0.5, 实际 %f", m.CacheHitRatio)
	}
}

func TestResolutionIsACopy(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	snap := spot("binance", "BTC", 50000, 2)

	first, _ := engine.CreateMarketHierarchy(snap)
	first.Nodes[0].Value = -1
	first.Nodes = nil

	second, _ := engine.CreateMarketHierarchy(snap)
	if second.Nodes[0].Value != 50000 {
		t.Fatalf("外部修改不应影响缓存中的层级: %+v", second.Nodes[0])
	}
}

func TestQuantizedSnapshotsShareFingerprint(t *testing.T) {
	engine, _ := newTestEngine(t, Options{Quantizer: Quantizer{PriceQuantum: 1, VolumeQuantum: 1}})
	if _, err := engine.CreateMarketHierarchy(spot("kraken", "ETH", 2000.2, 10)); err != nil {
		t.Fatal(err)
	}
	res, err := engine.CreateMarketHierarchy(spot("kraken", "ETH", 2000.4, 10.3))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Fatal("同一量化桶内的快照应命中缓存")
	}

	res, _ = engine.CreateMarketHierarchy(spot("kraken", "ETH", 2001, 10))
	if res.Cached {
		t.Fatal("跨桶的价格不应命中缓存")
	}
}

func TestCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	engine, clock := newTestEngine(t, Options{MaxSize: 3})

	for i := 0; i < 3; i++ {
		clock.Advance(time.Millisecond)
		if _, err := engine.CreateMarketHierarchy(spot("ex", fmt.Sprintf("M%d", i), 100, 1)); err != nil {
			t.Fatal(err)
		}
	}

	clock.Advance(time.Millisecond)
	if res, _ := engine.CreateMarketHierarchy(spot("ex", "M0", 100, 1)); !res.Cached {
		t.Fatal("M0 应命中")
	}

	clock.Advance(time.Millisecond)
	if _, err := engine.CreateMarketHierarchy(spot("ex", "M3", 100, 1)); err != nil {
		t.Fatal(err)
	}
	if size := engine.CacheStats().Size; size != 3 {
		t.Fatalf("缓存大小不应超过 maxSize, 实际 %d", size)
	}

	if res, _ := engine.CreateMarketHierarchy(spot("ex", "M0", 100, 1)); !res.Cached {
		t.Fatal("最近访问过的 M0 不应被淘汰")
	}
	if res, _ := engine.CreateMarketHierarchy(spot("ex", "M1", 100, 1)); res.Cached {
		t.Fatal("M1 是最久未访问的条目, 应已被淘汰")
	}
}

func TestExpiredEntryCountsAsMiss(t *testing.T) {
	engine, clock := newTestEngine(t, Options{TTL: 50 * time.Millisecond})
	snap := spot("okx", "SOL", 150, 3)

	if _, err := engine.CreateMarketHierarchy(snap); err != nil {
		t.Fatal(err)
	}
	clock.Advance(51 * time.Millisecond)

	res, err := engine.CreateMarketHierarchy(snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached {
		t.Fatal("超过 TTL 的条目应视为 miss")
	}
	m := engine.Metrics()
	if m.CacheHits != 0 || m.CacheMisses != 2 {
		t.Fatalf("计数错误: %+v", m)
	}
}

func TestPruneExpired(t *testing.T) {
	engine, clock := newTestEngine(t, Options{TTL: time.Second})
	_, _ = engine.CreateMarketHierarchy(spot("a", "X", 1, 1))
	_, _ = engine.CreateMarketHierarchy(spot("a", "Y", 1, 1))
	clock.Advance(2 * time.Second)
	_, _ = engine.CreateMarketHierarchy(spot("a", "Z", 1, 1))

	if removed := engine.PruneExpired(); removed != 2 {
		t.Fatalf("应清理 2 个过期条目, 实际 %d", removed)
	}
	stats := engine.CacheStats()
	if stats.Size != 1 || stats.TTLMs != 1000 || stats.MaxSize != DefaultMaxSize {
		t.Fatalf("CacheStats 错误: %+v", stats)
	}
}

func TestMetricsHitRatio(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	if m := engine.Metrics(); m.CacheHitRatio != 0 || m.Resolutions != 0 {
		t.Fatalf("初始命中率应为 0: %+v", m)
	}

	snap := spot("a", "BTC", 10, 1)
	for i := 0; i < 4; i++ {
		_, _ = engine.CreateMarketHierarchy(snap)
	}
	m := engine.Metrics()
	if m.Resolutions != m.CacheHits+m.CacheMisses {
		t.Fatalf("resolutions 应等于 hits+misses: %+v", m)
	}
	if m.CacheHitRatio != 0.75 {
		t.Fatalf("命中率应为 0.75, 实际 %f", m.CacheHitRatio)
	}
	if m.AvgResolutionNs == 0 {
		t.Fatal("avgResolutionNs 应只统计构建且 > 0")
	}

	engine.ResetMetrics()
	if m := engine.Metrics(); m.Resolutions != 0 || m.LastResetAt.IsZero() {
		t.Fatalf("重置后计数应归零: %+v", m)
	}
}

func TestValidationDoesNotTouchState(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	cases := []MarketSnapshot{
		{MarketID: "BTC", Price: 1},
		{ExchangeID: "a", Price: 1},
		{ExchangeID: "a", MarketID: "BTC", Price: 0},
		{ExchangeID: "a", MarketID: "BTC", Price: 1, Volume: -1},
		{ExchangeID: "a", MarketID: "BTC", Price: 1, Category: "sports"},
	}
	for _, snap := range cases {
		_, err := engine.CreateMarketHierarchy(snap)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%+v 应返回 ValidationError, 实际 %v", snap, err)
		}
	}

	m := engine.Metrics()
	if m.Resolutions != 0 || m.Failures != uint64(len(cases)) {
		t.Fatalf("失败不应计入 resolutions: %+v", m)
	}
	if engine.CacheStats().Size != 0 || engine.TotalNodes() != 0 {
		t.Fatal("失败不应写入缓存")
	}
}

func TestUnsupportedCategory(t *testing.T) {
	engine, _ := newTestEngine(t, Options{Categories: []Category{CategorySpot}})

	snap := spot("a", "BTC", 1, 1)
	snap.Category = "options"
	_, err := engine.CreateMarketHierarchy(snap)
	var catErr *UnsupportedCategoryError
	if !errors.As(err, &catErr) || catErr.Category != "options" {
		t.Fatalf("未知分类应返回 UnsupportedCategoryError: %v", err)
	}

	snap.Category = "sports"
	snap.Sports = &nano.SportsMarket{HomeOdds: 2, AwayOdds: 2}
	if _, err := engine.CreateMarketHierarchy(snap); !errors.Is(err, ErrUnsupportedCategory) {
		t.Fatalf("未注册的分类应返回 UnsupportedCategoryError: %v", err)
	}
}

func TestTimestampMustNotGoBackwards(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	snap := spot("a", "BTC", 100, 1)
	snap.Timestamp = now
	if _, err := engine.CreateMarketHierarchy(snap); err != nil {
		t.Fatal(err)
	}
	snap.Timestamp = now
	if _, err := engine.CreateMarketHierarchy(snap); err != nil {
		t.Fatalf("相同时间戳应允许: %v", err)
	}
	snap.Timestamp = now.Add(-time.Second)
	snap.Price = 101
	if _, err := engine.CreateMarketHierarchy(snap); !errors.Is(err, ErrValidation) {
		t.Fatalf("倒退的时间戳应被拒绝: %v", err)
	}
}

func TestSpotHierarchyShape(t *testing.T) {
	engine, _ := newTestEngine(t, Options{MinSpread: 0.01})
	_, _ = engine.CreateMarketHierarchy(spot("a", "BTC", 100, 1))
	res, err := engine.CreateMarketHierarchy(MarketSnapshot{ExchangeID: "b", MarketID: "BTC", Price: 110, Volume: 1, RegionID: "eu"})
	if err != nil {
		t.Fatal(err)
	}

	kinds := make(map[NodeKind]int)
	roots := 0
	for _, n := range res.Nodes {
		kinds[n.Kind]++
		if n.ParentID == "" {
			roots++
		}
	}
	if roots != 1 || res.Nodes[0].Kind != KindRoot || res.Nodes[0].ID != res.RootID {
		t.Fatalf("层级应有且只有一个根: %+v", res.Nodes)
	}
	// price, vwap, vwap spread, spread vs a, arbitrage a/b
	if kinds[KindPrice] != 1 || kinds[KindVWAP] != 1 || kinds[KindSpread] != 2 || kinds[KindArbitrage] != 1 {
		t.Fatalf("节点类型分布错误: %v", kinds)
	}
	if len(res.Arbitrage) != 1 {
		t.Fatalf("应有 1 个套利机会: %+v", res.Arbitrage)
	}
	opp := res.Arbitrage[0]
	if opp.Kind != OpportunitySpread || opp.ExchangeA != "a" || opp.ExchangeB != "b" || !opp.CrossRegion {
		t.Fatalf("套利机会字段错误: %+v", opp)
	}
	if opp.Spread <= 0.01 {
		t.Fatalf("价差应高于阈值: %f", opp.Spread)
	}
	if engine.TotalNodes() != uint64(4+len(res.Nodes)) {
		t.Fatalf("TotalNodes 应累加所有构建的节点: %d", engine.TotalNodes())
	}
}

func TestSportsHierarchyFindsCrossBookArbitrage(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	line := func(home, away float64) *nano.SportsMarket {
		return &nano.SportsMarket{Sport: "soccer", HomeTeamID: "ars", AwayTeamID: "che", HomeOdds: home, AwayOdds: away}
	}

	_, err := engine.CreateMarketHierarchy(MarketSnapshot{ExchangeID: "book-a", MarketID: "ars-che", Category: "sports", Price: 2.1, Volume: 100, Sports: line(2.1, 1.8)})
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.CreateMarketHierarchy(MarketSnapshot{ExchangeID: "book-b", MarketID: "ars-che", Category: "sports", Price: 1.8, Volume: 50, Sports: line(1.8, 2.1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Category != CategorySports || len(res.Arbitrage) != 1 {
		t.Fatalf("应发现跨盘口套利: %+v", res.Arbitrage)
	}
	if got := res.Arbitrage[0]; got.ExchangeA != "book-a:ars-che" || got.ExchangeB != "book-b:ars-che" || got.Kind != OpportunitySports {
		t.Fatalf("套利腿错误: %+v", got)
	}

	bad := MarketSnapshot{ExchangeID: "book-c", MarketID: "ars-che", Category: "sports", Price: 1, Volume: 1, Sports: line(1.0, 3)}
	_, err = engine.CreateMarketHierarchy(bad)
	var oddsErr *nano.InvalidOddsError
	if !errors.As(err, &oddsErr) || !errors.Is(err, ErrValidation) {
		t.Fatalf("赔率 <= 1 应返回 InvalidOddsError: %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory(""); err != nil || c != CategorySpot {
		t.Fatalf("空分类应为 spot: %v %v", c, err)
	}
	if c, err := ParseCategory("Sports"); err != nil || c != CategorySports {
		t.Fatalf("分类解析应忽略大小写: %v %v", c, err)
	}
	if _, err := ParseCategories([]string{"spot", "futures"}); !errors.Is(err, ErrUnsupportedCategory) {
		t.Fatalf("未知分类应报错: %v", err)
	}
}
