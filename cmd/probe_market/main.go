// Command probe_market checks the configured market data provider and sentiment classifier
// without going through the chat server. Arguments are symbols or free-text questions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"ai-marketchat-be/internal/config"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/marketdata"
	marketfactory "ai-marketchat-be/pkg/marketdata/factory"
	"ai-marketchat-be/pkg/sentiment"
	"ai-marketchat-be/pkg/ticker"

	"github.com/fatih/color"
)

func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"RELIANCE", "How is TCS doing after the results?"}
	}

	cfg := config.Load()

	// Probe without redis so every call reaches the upstream.
	provider, err := marketfactory.NewMarketDataProvider(marketfactory.Options{
		Provider:        cfg.Market.Provider,
		AlphaVantageKey: cfg.Keys.AlphaVantage,
		AlphaVantageURL: cfg.Market.AlphaVantageURL,
		NSEServiceURL:   cfg.Market.NSEServiceURL,
		Timeout:         cfg.Market.Timeout,
		CacheTTL:        time.Second,
	}, nil, logger.NewNopLogger())
	if err != nil {
		color.Red("Failed to build provider: %v", err)
		os.Exit(1)
	}
	fetcher := marketdata.NewFetcher(provider)
	classifier := sentiment.NewClassifier(cfg.Ai.SentimentURL, cfg.Keys.FinBERT, cfg.Ai.SentimentTimeout)

	color.Cyan("🚀 Probing %s (sentiment: %s)\n", provider.Name(), orDefault(cfg.Ai.SentimentURL, "default endpoint"))

	failures := 0
	for _, arg := range args {
		symbol := arg
		if strings.Contains(arg, " ") {
			extracted, ok := ticker.Extract(arg)
			if !ok {
				color.Yellow("\n[%s] no ticker found", arg)
				failures++
				continue
			}
			symbol = extracted
		}

		color.Yellow("\n[%s] quote for %s", arg, symbol)
		start := time.Now()
		res := fetcher.Fetch(context.Background(), symbol)
		elapsed := time.Since(start).Round(time.Millisecond)

		switch {
		case res.Available():
			color.Green("Status: %s in %s", res.Status, elapsed)
			prettyPrint(res.Snapshot)
		case res.Retryable():
			color.Magenta("Status: %s in %s: %s", res.Status, elapsed, res.Reason)
			failures++
		default:
			color.Red("Status: %s in %s: %s", res.Status, elapsed, res.Reason)
			failures++
		}

		mood := classifier.Classify(context.Background(), arg)
		if mood.Degraded() {
			color.Magenta("Sentiment: %s [degraded: %s]", mood, mood.Reason)
		} else {
			color.Green("Sentiment: %s", mood)
		}
	}

	if failures > 0 {
		color.Red("\n%d of %d probes failed", failures, len(args))
		os.Exit(1)
	}
	color.Green("\n✅ All probes passed")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
