package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/asset"
)

const (
	simplePricePath      = "/simple/price"
	marketChartRangeTmpl = "/coins/%s/market_chart/range"
)

// CoinGeckoOptions parameterise the CoinGecko fetcher.
type CoinGeckoOptions struct {
	BaseURL    string
	VsCurrency string
	Timeout    time.Duration
	UserAgent  string
}

// CoinGecko fetches spot and historical prices from the CoinGecko API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Fetch retrieves the current price for one asset.
func (c *CoinGecko) Fetch(ctx context.Context, a asset.Asset) (Quote, error) {
	query := url.Values{}
	query.Set("ids", a.CoinGeckoID())
	query.Set("vs_currencies", c.opts.VsCurrency)

	payload, err := c.get(ctx, a, c.baseURL+simplePricePath+"?"+query.Encode())
	if err != nil {
		return Quote{}, err
	}

	var body map[string]map[string]json.Number
	if err := json.Unmarshal(payload, &body); err != nil {
		return Quote{}, newError(KindInvalidResponse, a, err)
	}

	raw, ok := body[a.CoinGeckoID()][c.opts.VsCurrency]
	if !ok {
		return Quote{}, newError(KindInvalidResponse, a, fmt.Errorf("price for %s/%s missing from payload", a.CoinGeckoID(), c.opts.VsCurrency))
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return Quote{}, newError(KindInvalidResponse, a, fmt.Errorf("parse price: %w", err))
	}
	if price.Sign() <= 0 {
		return Quote{}, newError(KindInvalidResponse, a, fmt.Errorf("non-positive price %s", price))
	}

	return Quote{
		Asset:      a,
		Price:      price,
		Currency:   c.opts.VsCurrency,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// FetchHistory retrieves historical price points for the backfill job.
func (c *CoinGecko) FetchHistory(ctx context.Context, a asset.Asset, from, to time.Time) ([]Quote, error) {
	query := url.Values{}
	query.Set("vs_currency", c.opts.VsCurrency)
	query.Set("from", strconv.FormatInt(from.Unix(), 10))
	query.Set("to", strconv.FormatInt(to.Unix(), 10))

	endpoint := c.baseURL + fmt.Sprintf(marketChartRangeTmpl, a.CoinGeckoID()) + "?" + query.Encode()
	payload, err := c.get(ctx, a, endpoint)
	if err != nil {
		return nil, err
	}

	var body struct {
		Prices [][2]json.Number `json:"prices"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, newError(KindInvalidResponse, a, err)
	}

	quotes := make([]Quote, 0, len(body.Prices))
	for _, point := range body.Prices {
		millis, err := point[0].Int64()
		if err != nil {
			return nil, newError(KindInvalidResponse, a, fmt.Errorf("parse timestamp: %w", err))
		}
		price, err := decimal.NewFromString(point[1].String())
		if err != nil {
			return nil, newError(KindInvalidResponse, a, fmt.Errorf("parse price: %w", err))
		}
		quotes = append(quotes, Quote{
			Asset:      a,
			Price:      price,
			Currency:   c.opts.VsCurrency,
			ObservedAt: time.UnixMilli(millis).UTC(),
		})
	}
	return quotes, nil
}

func (c *CoinGecko) get(ctx context.Context, a asset.Asset, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newError(KindUnavailable, a, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, newError(KindUnavailable, a, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindUnavailable, a, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return payload, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		fe := newError(KindRateLimited, a, fmt.Errorf("coingecko status %d", resp.StatusCode))
		if seconds, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && seconds > 0 {
			fe.RetryAfter = time.Duration(seconds) * time.Second
		}
		return nil, fe
	case resp.StatusCode >= 500:
		return nil, newError(KindUnavailable, a, fmt.Errorf("coingecko status %d", resp.StatusCode))
	default:
		return nil, newError(KindInvalidResponse, a, fmt.Errorf("coingecko status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))))
	}
}

var _ QuoteFetcher = (*CoinGecko)(nil)
var _ HistoryFetcher = (*CoinGecko)(nil)
