package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"ai-marketchat-be/pkg/marketdata"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co/query"
	historyDays    = 30
	notAvailable   = "N/A"
)

// AlphaVantageProvider resolves a free-form symbol through SYMBOL_SEARCH, then pulls
// TIME_SERIES_DAILY and OVERVIEW for the best match.
type AlphaVantageProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	// raw symbol -> Alpha Vantage symbol
	symbols *cache.Cache
}

var _ marketdata.Provider = &AlphaVantageProvider{}

func NewAlphaVantageProvider(apiKey, baseURL string, timeout time.Duration) *AlphaVantageProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = marketdata.DefaultTimeout
	}
	return &AlphaVantageProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		symbols: cache.New(24*time.Hour, time.Hour),
	}
}

func (p *AlphaVantageProvider) Name() string {
	return "ALPHA_VANTAGE"
}

type searchResponse struct {
	BestMatches []map[string]string `json:"bestMatches"`
}

type dailyResponse struct {
	MetaData   map[string]string            `json:"Meta Data"`
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
}

type overviewResponse struct {
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	DividendYield        string `json:"DividendYield"`
	ProfitMargin         string `json:"ProfitMargin"`
}

func (p *AlphaVantageProvider) Quote(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	avSymbol, err := p.searchSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var daily dailyResponse
	if err := p.query(ctx, url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {avSymbol}}, &daily); err != nil {
		return nil, err
	}
	if len(daily.TimeSeries) == 0 {
		return nil, fmt.Errorf("%w: no price data found for %s", marketdata.ErrUnavailable, avSymbol)
	}

	bars, err := toBars(daily.TimeSeries)
	if err != nil {
		return nil, err
	}

	snap := &marketdata.Snapshot{
		InputSymbol:   symbol,
		Symbol:        avSymbol,
		Source:        p.Name(),
		LastRefreshed: daily.MetaData["3. Last Refreshed"],
		Company:       p.overview(ctx, symbol, avSymbol),
	}
	marketdata.Summarize(snap, bars)

	return snap, nil
}

func (p *AlphaVantageProvider) searchSymbol(ctx context.Context, raw string) (string, error) {
	if s, found := p.symbols.Get(raw); found {
		return s.(string), nil
	}

	var res searchResponse
	if err := p.query(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {raw}}, &res); err != nil {
		return "", err
	}
	if len(res.BestMatches) == 0 || res.BestMatches[0]["1. symbol"] == "" {
		return "", fmt.Errorf("%w: could not find stock for %q", marketdata.ErrSymbolNotFound, raw)
	}

	s := res.BestMatches[0]["1. symbol"]
	p.symbols.Set(raw, s, cache.DefaultExpiration)
	return s, nil
}

// overview never fails the quote; missing fields fall back to placeholders.
func (p *AlphaVantageProvider) overview(ctx context.Context, raw, avSymbol string) marketdata.CompanyInfo {
	var ov overviewResponse
	if err := p.query(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {avSymbol}}, &ov); err != nil {
		ov = overviewResponse{}
	}

	return marketdata.CompanyInfo{
		Name:          orDefault(ov.Name, raw),
		Description:   orDefault(ov.Description, "Information not available"),
		Sector:        orDefault(ov.Sector, notAvailable),
		Industry:      orDefault(ov.Industry, notAvailable),
		MarketCap:     orDefault(ov.MarketCapitalization, notAvailable),
		PERatio:       orDefault(ov.PERatio, notAvailable),
		DividendYield: orDefault(ov.DividendYield, notAvailable),
		ProfitMargin:  orDefault(ov.ProfitMargin, notAvailable),
	}
}

// query performs one API call and decodes into out. Alpha Vantage reports throttling with a 200
// and a "Note" or "Information" field, so the body is checked before decoding.
func (p *AlphaVantageProvider) query(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", marketdata.ErrUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", marketdata.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", marketdata.ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: try again in 1 minute", marketdata.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: alpha vantage status %d", marketdata.ErrUnavailable, resp.StatusCode)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("%w: decode response: %v", marketdata.ErrUnavailable, err)
	}
	if _, ok := probe["Note"]; ok {
		return fmt.Errorf("%w: try again in 1 minute", marketdata.ErrRateLimited)
	}
	if _, ok := probe["Information"]; ok {
		return fmt.Errorf("%w: try again in 1 minute", marketdata.ErrRateLimited)
	}
	if msg, ok := probe["Error Message"]; ok {
		return fmt.Errorf("%w: %s", marketdata.ErrSymbolNotFound, string(msg))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", marketdata.ErrUnavailable, err)
	}
	return nil
}

func toBars(series map[string]map[string]string) ([]marketdata.DailyBar, error) {
	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	// YYYY-MM-DD sorts lexically; newest first
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > historyDays {
		dates = dates[:historyDays]
	}

	bars := make([]marketdata.DailyBar, 0, len(dates))
	for _, d := range dates {
		day := series[d]
		closeVal, err := strconv.ParseFloat(day["4. close"], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad close for %s", marketdata.ErrUnavailable, d)
		}
		// a malformed high or low falls back to the close so period extremes stay real prices
		high := parseOr(day["2. high"], closeVal)
		low := parseOr(day["3. low"], closeVal)
		volume, err := strconv.ParseInt(day["5. volume"], 10, 64)
		if err != nil {
			volume = 0
		}

		bars = append(bars, marketdata.DailyBar{
			Date:   d,
			Close:  closeVal,
			High:   high,
			Low:    low,
			Volume: volume,
		})
	}
	return bars, nil
}

func parseOr(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func orDefault(v, fallback string) string {
	if v == "" || v == "None" {
		return fallback
	}
	return v
}
