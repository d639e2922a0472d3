package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
)

// DefaultYahooURL is the chart endpoint base.
const DefaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Yahoo fetches quotes from the Yahoo Finance chart API.
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// YahooOption configures Yahoo.
type YahooOption func(*Yahoo)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.client = c
	}
}

// WithBaseURL points the source at another chart endpoint (tests, proxies).
func WithBaseURL(u string) YahooOption {
	return func(y *Yahoo) {
		y.baseURL = strings.TrimRight(u, "/") + "/"
	}
}

// NewYahoo creates a Yahoo quote source.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: DefaultYahooURL,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements ports.QuoteSource. Price and change are rounded to cents.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (domain.Quote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return domain.Quote{}, errors.New("symbol is required")
	}

	u := y.baseURL + url.PathEscape(sym) + "?range=1d&interval=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "stategraph/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("fetch %s: %w", sym, err)
	}
	defer resp.Body.Close()

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Quote{}, fmt.Errorf("decode %s (status %d): %w", sym, resp.StatusCode, err)
	}
	if e := body.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return domain.Quote{}, fmt.Errorf("%w: %s", ports.ErrUnknownSymbol, sym)
		}
		return domain.Quote{}, fmt.Errorf("yahoo error %s: %s", e.Code, e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("fetch %s: unexpected status %d", sym, resp.StatusCode)
	}
	if len(body.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("could not fetch data for symbol %s", sym)
	}

	meta := body.Chart.Result[0].Meta
	prev := meta.PreviousClose
	if prev == 0 {
		prev = meta.ChartPreviousClose
	}
	if prev == 0 {
		prev = meta.RegularMarketPrice
	}
	change := meta.RegularMarketPrice - prev
	var pct float64
	if prev != 0 {
		pct = change / prev * 100
	}
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}

	return domain.Quote{
		Symbol:        sym,
		Price:         round2(meta.RegularMarketPrice),
		Currency:      currency,
		Change:        round2(change),
		ChangePercent: round2(pct),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
