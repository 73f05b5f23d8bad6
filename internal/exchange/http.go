package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"market-hierarchy/internal/hierarchy"
)

const marketsPath = "/markets"

// HTTPOptions parameterise the REST adapter.
type HTTPOptions struct {
	ID        string
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// HTTP fetches snapshots from GET <base>/markets.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTP constructs a REST adapter.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "exchange_http").Str("exchange", opts.ID).Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// ID names the adapter.
func (h *HTTP) ID() string { return h.opts.ID }

type marketsResponse struct {
	ExchangeID string                     `json:"exchangeId"`
	Markets    []hierarchy.MarketSnapshot `json:"markets"`
}

// FetchMarkets accepts either a bare JSON array or {"markets": [...]}.
func (h *HTTP) FetchMarkets(ctx context.Context) ([]hierarchy.MarketSnapshot, error) {
	if h.baseURL == "" {
		return nil, fmt.Errorf("exchange %s: base url not configured", h.opts.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+marketsPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "hierarchyctl/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(h.opts.ID, resp.StatusCode, payload)
	}

	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		var list []hierarchy.MarketSnapshot
		if err := sonnet.Unmarshal(payload, &list); err != nil {
			return nil, fmt.Errorf("decode markets: %w", err)
		}
		return withExchangeID(h.opts.ID, list), nil
	}

	var body marketsResponse
	if err := sonnet.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	id := h.opts.ID
	if body.ExchangeID != "" {
		id = body.ExchangeID
	}
	h.logger.Debug().Int("markets", len(body.Markets)).Msg("markets fetched")
	return withExchangeID(id, body.Markets), nil
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(exchange string, status int, payload []byte) error {
	var apiErr errorResponse
	if err := sonnet.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("%s api error (%d): %s", exchange, status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%s api error (%d): %s", exchange, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%s api error (%d): %s", exchange, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%s api error (%d): %s", exchange, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%s api error (%d)", exchange, status)
}

// HTTPProber times HEAD requests against per-exchange URLs.
type HTTPProber struct {
	urls   map[string]string
	client *http.Client
}

// NewHTTPProber maps exchange ids to probe URLs.
func NewHTTPProber(urls map[string]string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{urls: urls, client: &http.Client{Timeout: timeout}}
}

// Probe issues one HEAD request. Any HTTP status counts as a round trip.
func (p *HTTPProber) Probe(ctx context.Context, exchange string) error {
	url, ok := p.urls[exchange]
	if !ok {
		return fmt.Errorf("no probe url for exchange %s", exchange)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

var _ hierarchy.Exchange = (*HTTP)(nil)
