package factory

import (
	"fmt"
	"time"

	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/marketdata"
	"ai-marketchat-be/pkg/marketdata/alphavantage"
	"ai-marketchat-be/pkg/marketdata/cache"
	"ai-marketchat-be/pkg/marketdata/nse"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Provider        string // "alphavantage" | "nse"
	AlphaVantageKey string
	AlphaVantageURL string
	NSEServiceURL   string
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// NewMarketDataProvider builds the configured upstream wrapped in the quote cache.
func NewMarketDataProvider(opts Options, rdb *redis.Client, log logger.ILogger) (marketdata.Provider, error) {
	var inner marketdata.Provider

	switch opts.Provider {
	case "", "alphavantage":
		if opts.AlphaVantageKey == "" {
			return nil, fmt.Errorf("alpha vantage provider requires an API key")
		}
		inner = alphavantage.NewAlphaVantageProvider(opts.AlphaVantageKey, opts.AlphaVantageURL, opts.Timeout)
	case "nse":
		if opts.NSEServiceURL == "" {
			return nil, fmt.Errorf("nse provider requires a service URL")
		}
		inner = nse.NewNSEProvider(opts.NSEServiceURL, opts.Timeout)
	default:
		return nil, fmt.Errorf("unsupported market data provider: %s", opts.Provider)
	}

	return cache.NewCachedProvider(inner, rdb, opts.CacheTTL, log), nil
}
