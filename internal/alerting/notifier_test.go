package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-hierarchy/internal/hierarchy"
)

func sampleNote() Notification {
	opp := hierarchy.Opportunity{Kind: hierarchy.OpportunitySpread, Pair: "BTC", ExchangeA: "a", ExchangeB: "b", Spread: 0.0125, CrossRegion: true}
	return NewNotification(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), opp, 0.005, []string{"telegram"})
}

func TestNewNotificationPercent(t *testing.T) {
	note := sampleNote()
	if !note.SpreadPct.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("期望价差 1.25%%, 实际 %s", note.SpreadPct)
	}
	if !note.ThresholdPct.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("期望阈值 0.5%%, 实际 %s", note.ThresholdPct)
	}
	if note.Key() != "spread|BTC|a|b" {
		t.Fatalf("key 不正确: %s", note.Key())
	}
	msg := renderMessage(note)
	if !strings.Contains(msg, "Legs: a / b") || !strings.Contains(msg, "Cross-region") {
		t.Fatalf("消息内容不完整: %s", msg)
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Errorf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "Pair: BTC") {
		t.Fatalf("text 应包含交易对: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

type recordingPublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATSNotifierPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNATSNotifier(pub, "hierarchy.arbitrage", testLogger())
	if err := n.Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	if pub.subject != "hierarchy.arbitrage" {
		t.Fatalf("主题不正确: %s", pub.subject)
	}

	var decoded struct {
		Pair      string `json:"pair"`
		ExchangeA string `json:"exchangeA"`
		SpreadPct string `json:"spreadPct"`
	}
	if err := json.Unmarshal(pub.data, &decoded); err != nil {
		t.Fatalf("payload 不是合法 JSON: %v", err)
	}
	if decoded.Pair != "BTC" || decoded.ExchangeA != "a" || decoded.SpreadPct != "1.25" {
		t.Fatalf("payload 内容不正确: %+v", decoded)
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, Notification) error {
	c.calls++
	return c.err
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &countingNotifier{}
	bad := &countingNotifier{err: boom}
	m := Multi{bad, ok}

	err := m.Notify(context.Background(), sampleNote())
	if !errors.Is(err, boom) {
		t.Fatalf("应返回子告警器错误, 实际 %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatal("所有告警器都应被调用")
	}
	if err := (Multi{ok}).Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("全部成功时不应报错: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
