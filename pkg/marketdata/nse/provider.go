package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-marketchat-be/pkg/marketdata"
)

const notAvailable = "N/A"

// NSEProvider talks to the NSE quote micro-service: GET {base}/stock/{symbol}.
// The service only reports the current session, so History holds a single bar.
type NSEProvider struct {
	baseURL string
	client  *http.Client
}

var _ marketdata.Provider = &NSEProvider{}

func NewNSEProvider(baseURL string, timeout time.Duration) *NSEProvider {
	if timeout <= 0 {
		timeout = marketdata.DefaultTimeout
	}
	return &NSEProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *NSEProvider) Name() string {
	return "NSE"
}

type stockResponse struct {
	Success bool      `json:"success"`
	Source  string    `json:"source"`
	Data    stockData `json:"data"`
	Detail  string    `json:"detail"`
}

// Upstream fields are nullable.
type stockData struct {
	Symbol        string   `json:"symbol"`
	LatestPrice   *float64 `json:"latestPrice"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"changePercent"`
	DayHigh       *float64 `json:"dayHigh"`
	DayLow        *float64 `json:"dayLow"`
	Volume        *float64 `json:"volume"`
	LastUpdated   *string  `json:"lastUpdated"`
	CompanyName   *string  `json:"companyName"`
	Industry      *string  `json:"industry"`
}

func (p *NSEProvider) Quote(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/stock/%s", p.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", marketdata.ErrUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", marketdata.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", marketdata.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: nse service throttled", marketdata.ErrRateLimited)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		// the service answers 400 for symbols NSE does not know
		return nil, fmt.Errorf("%w: %s", marketdata.ErrSymbolNotFound, symbol)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: nse service status %d", marketdata.ErrUnavailable, resp.StatusCode)
	}

	var res stockResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", marketdata.ErrUnavailable, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrSymbolNotFound, symbol)
	}
	if res.Data.LatestPrice == nil {
		return nil, fmt.Errorf("%w: no price for %s", marketdata.ErrUnavailable, symbol)
	}

	d := res.Data
	price := *d.LatestPrice
	high := floatOr(d.DayHigh, price)
	low := floatOr(d.DayLow, price)
	volume := int64(math.Round(floatOr(d.Volume, 0)))
	updated := stringOr(d.LastUpdated, "")

	bar := marketdata.DailyBar{
		Date:   updated,
		Close:  price,
		High:   high,
		Low:    low,
		Volume: volume,
	}

	snap := &marketdata.Snapshot{
		InputSymbol:   symbol,
		Symbol:        stringOr(&d.Symbol, symbol),
		Source:        p.Name(),
		LastRefreshed: updated,
		Company: marketdata.CompanyInfo{
			Name:          stringOr(d.CompanyName, symbol),
			Description:   "Information not available",
			Sector:        notAvailable,
			Industry:      stringOr(d.Industry, notAvailable),
			MarketCap:     notAvailable,
			PERatio:       notAvailable,
			DividendYield: notAvailable,
			ProfitMargin:  notAvailable,
		},
	}
	marketdata.Summarize(snap, []marketdata.DailyBar{bar})

	// the service reports change against the previous close itself
	snap.Change = math.Round(floatOr(d.Change, 0)*100) / 100
	snap.ChangePercent = math.Round(floatOr(d.ChangePercent, 0)*100) / 100

	return snap, nil
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func stringOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
