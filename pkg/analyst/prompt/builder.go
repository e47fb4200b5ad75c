package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai-marketchat-be/pkg/marketdata"
	"ai-marketchat-be/pkg/sentiment"
)

const (
	noLiveData = "No live data available"
	noTicker   = "None identified"
)

// Input is everything the analyst prompt is assembled from.
type Input struct {
	Query     string
	Ticker    string
	History   string // "ROLE: content" digest, empty for a new conversation
	Market    *marketdata.Result
	Sentiment sentiment.Result
}

const template = `Role: Expert Stock Market Analyst (NSE/BSE).
Context: %s
Status: Ticker: %s | Data: %s | User Sentiment: %s
%s
USER REQUEST: "%s"

INSTRUCTIONS:
- Strictly answer only stock market or financial education queries.
- Refer to %s if the user says "it" or "this" otherwise ignore its usage at all times.
%s- Use Indian terminology (Lakhs/Crores) and professional tone.
- Answer the queries the user has regarding the stock market.%s
- If live data is unavailable, say so plainly and do not invent prices.
- Keep the answer short but detailed.`

const structureBlock = `- Required Response Structure when user refers to %s:
  1. Current Price
  2. Trend Analysis
  3. Levels (Support/Resistance)
  4. Risk Assessment
  5. Investment View
`

// Build assembles the single-shot prompt sent to the model.
func Build(in Input) string {
	context := "New conversation."
	historyBlock := ""
	if strings.TrimSpace(in.History) != "" {
		context = "Ongoing chat session."
		historyBlock = "\nCONVERSATION SO FAR:\n" + in.History + "\n"
	}

	ticker := noTicker
	referent := "the requested stock"
	structure := ""
	general := ""
	if in.Ticker != "" {
		ticker = in.Ticker
		referent = in.Ticker
		structure = fmt.Sprintf(structureBlock, in.Ticker)
		general = fmt.Sprintf(" Do not use %s for general stock market queries it is not required.", in.Ticker)
	}

	return fmt.Sprintf(template,
		context,
		ticker,
		MarketData(in.Market),
		SentimentLine(in.Sentiment),
		historyBlock,
		in.Query,
		referent,
		structure,
		general,
	)
}

// MarketData renders the quote as compact JSON, or the unavailability notice with its reason.
func MarketData(res *marketdata.Result) string {
	if res == nil {
		return noLiveData
	}
	if res.Available() {
		raw, err := json.Marshal(res.Snapshot)
		if err == nil {
			return string(raw)
		}
		return noLiveData
	}

	switch res.Status {
	case marketdata.StatusRateLimited:
		return noLiveData + " (market data provider rate limit reached, try again in a minute)"
	case marketdata.StatusNotFound:
		return noLiveData + " (symbol not found on NSE/BSE)"
	default:
		return noLiveData + " (market data service unavailable)"
	}
}

// SentimentLine renders e.g. "positive (0.91)".
func SentimentLine(r sentiment.Result) string {
	if r.Label == "" {
		return string(sentiment.Neutral)
	}
	return r.String()
}
