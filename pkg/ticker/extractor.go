package ticker

import (
	"regexp"
)

var candidatePattern = regexp.MustCompile(`\b[A-Z]{2,10}\b`)

// excluded holds uppercase words that show up in market questions but never name a company.
var excluded = map[string]struct{}{
	"NSE":   {},
	"BSE":   {},
	"BUY":   {},
	"SELL":  {},
	"HOLD":  {},
	"STOCK": {},
	"PRICE": {},
	"INDIA": {},
}

// IsExcluded reports whether word is one of the exchange/trade-action terms the extractor skips.
func IsExcluded(word string) bool {
	_, ok := excluded[word]
	return ok
}

// Extract returns the first 2-10 letter uppercase token in text that is not an excluded term.
func Extract(text string) (string, bool) {
	for _, m := range candidatePattern.FindAllString(text, -1) {
		if !IsExcluded(m) {
			return m, true
		}
	}
	return "", false
}

// Resolve looks for a ticker in current first, then walks history from the newest entry backwards.
// history is expected in chronological (oldest first) order.
func Resolve(current string, history []string) (string, bool) {
	if t, ok := Extract(current); ok {
		return t, true
	}
	for i := len(history) - 1; i >= 0; i-- {
		if t, ok := Extract(history[i]); ok {
			return t, true
		}
	}
	return "", false
}
