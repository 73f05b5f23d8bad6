package nano

import (
	"errors"
	"math"
	"testing"
)

func TestMarketVWAP(t *testing.T) {
	m := NewMarket("BTC", 16)
	for _, q := range []Quote{{100, 1000}, {110, 500}, {105, 800}} {
		if err := m.Update(q.Price, q.Volume); err != nil {
			t.Fatalf("Update 不应报错: %v", err)
		}
	}

	vwap := m.VWAP(0)
	if math.Abs(vwap-103.91) > 0.01 {
		t.Fatalf("VWAP 期望约 103.91, 实际 %f", vwap)
	}

	last2 := m.VWAP(2)
	want := (110*500 + 105*800) / 1300.0
	if math.Abs(last2-want) > 1e-9 {
		t.Fatalf("窗口 VWAP 期望 %f, 实际 %f", want, last2)
	}
}

func TestMarketEmptyWindow(t *testing.T) {
	m := NewMarket("ETH", 4)
	if v := m.VWAP(0); v != 0 {
		t.Fatalf("空窗口 VWAP 应为 0, 实际 %f", v)
	}
	if q := m.Latest(); q.Price != 0 || q.Volume != 0 {
		t.Fatalf("空窗口 Latest 应为零值, 实际 %+v", q)
	}
}

func TestMarketZeroVolume(t *testing.T) {
	m := NewMarket("ETH", 4)
	_ = m.Update(2000, 0)
	_ = m.Update(2100, 0)
	if v := m.VWAP(0); v != 0 {
		t.Fatalf("零成交量 VWAP 应为 0, 实际 %f", v)
	}
	if q := m.Latest(); q.Price != 2100 {
		t.Fatalf("Latest 应为最新报价, 实际 %+v", q)
	}
}

func TestMarketRejectsInvalidQuote(t *testing.T) {
	m := NewMarket("SOL", 4)
	cases := []Quote{{0, 1}, {-1, 1}, {10, -1}, {math.NaN(), 1}}
	for _, q := range cases {
		err := m.Update(q.Price, q.Volume)
		var quoteErr *InvalidQuoteError
		if !errors.As(err, &quoteErr) {
			t.Fatalf("%+v 应返回 InvalidQuoteError, 实际 %v", q, err)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("非法报价不应写入窗口")
	}
}

func TestMarketWindowEviction(t *testing.T) {
	m := NewMarket("BTC", 2)
	_ = m.Update(1, 1)
	_ = m.Update(2, 1)
	_ = m.Update(3, 1)
	if v := m.VWAP(0); v != 2.5 {
		t.Fatalf("淘汰最旧报价后 VWAP 应为 2.5, 实际 %f", v)
	}
}
