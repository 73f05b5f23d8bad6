package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-hierarchy/internal/hierarchy"
)

var hundred = decimal.NewFromInt(100)

// Notification 封装一次套利告警。
type Notification struct {
	Bucket        time.Time       `json:"bucket"`
	Kind          string          `json:"kind"`
	Pair          string          `json:"pair"`
	ExchangeA     string          `json:"exchangeA"`
	ExchangeB     string          `json:"exchangeB"`
	SpreadPct     decimal.Decimal `json:"spreadPct"`
	ThresholdPct  decimal.Decimal `json:"thresholdPct"`
	CrossRegion   bool            `json:"crossRegion"`
	Channels      []string        `json:"channels,omitempty"`
	AdditionalMsg string          `json:"message,omitempty"`
}

// NewNotification converts an opportunity with fractional spread into a
// percentage notification.
func NewNotification(bucket time.Time, opp hierarchy.Opportunity, threshold float64, channels []string) Notification {
	return Notification{
		Bucket:       bucket,
		Kind:         opp.Kind,
		Pair:         opp.Pair,
		ExchangeA:    opp.ExchangeA,
		ExchangeB:    opp.ExchangeB,
		SpreadPct:    decimal.NewFromFloat(opp.Spread).Mul(hundred),
		ThresholdPct: decimal.NewFromFloat(threshold).Mul(hundred),
		CrossRegion:  opp.CrossRegion,
		Channels:     channels,
	}
}

// Key identifies the opportunity for cooldown purposes.
func (n Notification) Key() string {
	return n.Kind + "|" + n.Pair + "|" + n.ExchangeA + "|" + n.ExchangeB
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram 返回 ok=false")
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Str("pair", note.Pair).
		Str("spread_pct", note.SpreadPct.StringFixed(3)).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	var b strings.Builder
	b.WriteString("[Market Hierarchy Arbitrage]\n")
	b.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Kind: %s\n", note.Kind))
	b.WriteString(fmt.Sprintf("Pair: %s\n", note.Pair))
	if note.ExchangeB != "" && note.ExchangeB != note.ExchangeA {
		b.WriteString(fmt.Sprintf("Legs: %s / %s\n", note.ExchangeA, note.ExchangeB))
	} else {
		b.WriteString(fmt.Sprintf("Book: %s\n", note.ExchangeA))
	}
	b.WriteString(fmt.Sprintf("Spread: %s%% (threshold %s%%)\n", note.SpreadPct.StringFixed(3), note.ThresholdPct.StringFixed(3)))
	if note.CrossRegion {
		b.WriteString("Cross-region: yes\n")
	}
	if len(note.Channels) > 0 {
		b.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		b.WriteString(note.AdditionalMsg)
	}
	return b.String()
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify 依次调用所有告警器。
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = Multi(nil)
)
