package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPMissingBaseURL(t *testing.T) {
	h := NewHTTP(HTTPOptions{ID: "ex"}, zerolog.Nop())
	if _, err := h.FetchMarkets(context.Background()); err == nil {
		t.Fatal("缺少 base_url 应报错")
	}
}

func TestHTTPFetchArray(t *testing.T) {
	var gotUA, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"marketId":"BTC","price":100,"volume":2,"regionId":"us","timestamp":"2024-01-01T00:00:00Z"}]`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{ID: "ex", BaseURL: srv.URL + "/", Timeout: time.Second, UserAgent: "test"}, zerolog.Nop())
	snaps, err := h.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if gotPath != "/markets" || gotUA != "test" {
		t.Fatalf("请求错误: path=%s ua=%s", gotPath, gotUA)
	}
	if len(snaps) != 1 || snaps[0].ExchangeID != "ex" || snaps[0].Price != 100 {
		t.Fatalf("解析结果错误: %+v", snaps)
	}
}

func TestHTTPFetchEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"exchangeId":"remote","markets":[{"marketId":"ETH","price":10,"volume":1}]}`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{ID: "ex", BaseURL: srv.URL}, zerolog.Nop())
	snaps, err := h.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ExchangeID != "remote" {
		t.Fatalf("应使用响应中的 exchangeId: %+v", snaps)
	}
}

func TestHTTPFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad","description":"unknown market"}`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{ID: "ex", BaseURL: srv.URL}, zerolog.Nop())
	_, err := h.FetchMarkets(context.Background())
	if err == nil {
		t.Fatal("HTTP 400 应返回错误")
	}
	if !strings.Contains(err.Error(), "unknown market") {
		t.Fatalf("错误信息应包含 description: %v", err)
	}
}

func TestHTTPProber(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewHTTPProber(map[string]string{"a": srv.URL}, time.Second)
	if err := p.Probe(context.Background(), "a"); err != nil {
		t.Fatalf("探测失败: %v", err)
	}
	if method != http.MethodHead {
		t.Fatalf("应使用 HEAD, 实际 %s", method)
	}
	if err := p.Probe(context.Background(), "missing"); err == nil {
		t.Fatal("未配置的交易所应报错")
	}
}
