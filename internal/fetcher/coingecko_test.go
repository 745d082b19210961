package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-volatility-alerts/internal/asset"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestFetcher(baseURL string) *CoinGecko {
	return NewCoinGecko(CoinGeckoOptions{
		BaseURL:    baseURL,
		VsCurrency: "usd",
		Timeout:    time.Second,
		UserAgent:  "test",
	}, noopLogger())
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Fatalf("unexpected ids %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":69702.31}}`))
	}))
	defer srv.Close()

	quote, err := newTestFetcher(srv.URL).Fetch(context.Background(), asset.BTC)
	if err != nil {
		t.Fatalf("Fetch should succeed: %v", err)
	}
	if quote.Asset != asset.BTC {
		t.Fatalf("unexpected asset %s", quote.Asset)
	}
	if quote.Price.String() != "69702.31" {
		t.Fatalf("unexpected price %s", quote.Price)
	}
	if quote.ObservedAt.IsZero() {
		t.Fatal("observed_at should be set")
	}
}

func TestFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).Fetch(context.Background(), asset.ETH)
	if !IsRateLimited(err) {
		t.Fatalf("HTTP 429 should map to rate_limited, got %v", err)
	}
	fe, _ := AsError(err)
	if fe.RetryAfter != 30*time.Second {
		t.Fatalf("retry-after hint should be 30s, got %s", fe.RetryAfter)
	}
}

func TestFetchUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).Fetch(context.Background(), asset.XRP)
	fe, ok := AsError(err)
	if !ok || fe.Kind != KindUnavailable {
		t.Fatalf("HTTP 502 should map to unavailable, got %v", err)
	}
}

func TestFetchInvalidResponse(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{"bitcoin":`,
		"missing asset":  `{"ethereum":{"usd":1.0}}`,
		"zero price":     `{"bitcoin":{"usd":0}}`,
	}

	for name, payload := range cases {
		body := payload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		_, err := newTestFetcher(srv.URL).Fetch(context.Background(), asset.BTC)
		fe, ok := AsError(err)
		if !ok || fe.Kind != KindInvalidResponse {
			t.Fatalf("%s: expected invalid_response, got %v", name, err)
		}
		srv.Close()
	}
}

func TestFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/ripple/market_chart/range" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"prices":[[1711843200000,0.61],[1711843500000,0.62]]}`))
	}))
	defer srv.Close()

	quotes, err := newTestFetcher(srv.URL).FetchHistory(context.Background(), asset.XRP, time.Unix(1711843200, 0), time.Unix(1711843500, 0))
	if err != nil {
		t.Fatalf("FetchHistory should succeed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if !quotes[0].ObservedAt.Equal(time.UnixMilli(1711843200000).UTC()) {
		t.Fatalf("unexpected timestamp %s", quotes[0].ObservedAt)
	}
	if quotes[1].Price.String() != "0.62" {
		t.Fatalf("unexpected price %s", quotes[1].Price)
	}
}
