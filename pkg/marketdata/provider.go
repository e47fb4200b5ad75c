package marketdata

import (
	"context"
	"errors"
	"strings"
	"time"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrRateLimited    = errors.New("data provider rate limit reached")
	ErrUnavailable    = errors.New("market data unavailable")
)

// DailyBar is one trading day of price history.
type DailyBar struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`
}

type CompanyInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Sector        string `json:"sector"`
	Industry      string `json:"industry"`
	MarketCap     string `json:"market_cap"`
	PERatio       string `json:"pe_ratio"`
	DividendYield string `json:"dividend_yield"`
	ProfitMargin  string `json:"profit_margin"`
}

// Snapshot is the normalized quote payload handed to the prompt builder and the /stock endpoint.
// History is most-recent-first.
type Snapshot struct {
	InputSymbol   string      `json:"input_symbol"`
	Symbol        string      `json:"symbol"`
	Source        string      `json:"source"`
	LatestPrice   float64     `json:"latest_price"`
	Change        float64     `json:"change"`
	ChangePercent float64     `json:"change_percent"`
	Last5Days     []DailyBar  `json:"last_5_days"`
	History       []DailyBar  `json:"last_30_days"`
	Average30Day  float64     `json:"average_30_day"`
	PeriodHigh    float64     `json:"period_high"`
	PeriodLow     float64     `json:"period_low"`
	AvgVolume     int64       `json:"avg_volume"`
	LastRefreshed string      `json:"last_refreshed"`
	Company       CompanyInfo `json:"company_info"`
}

// Provider fetches a quote from one upstream. Errors wrap ErrSymbolNotFound, ErrRateLimited
// or ErrUnavailable.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*Snapshot, error)
	Name() string
}

// NormalizeSymbol upper-cases and trims a user-supplied symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
