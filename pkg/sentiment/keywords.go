package sentiment

import "strings"

var bullishWords = []string{
	"bullish", "buy", "growth", "profit", "gain", "rally", "surge", "upside",
	"strong", "outperform", "uptrend", "breakout", "upgrade", "record high",
}

var bearishWords = []string{
	"bearish", "sell", "loss", "decline", "fall", "crash", "drop", "downside",
	"weak", "underperform", "downtrend", "breakdown", "downgrade", "slump",
}

// Fallback labels text by counting bullish and bearish keywords. Matching is plain substring
// containment on the lower-cased text, so "buying" counts as "buy".
func Fallback(text, reason string) Result {
	lower := strings.ToLower(text)
	bull := countAll(lower, bullishWords)
	bear := countAll(lower, bearishWords)

	label := Neutral
	switch {
	case bull > bear:
		label = Positive
	case bear > bull:
		label = Negative
	}

	return Result{
		Label:  label,
		Score:  fallbackConfidence,
		Status: StatusDegraded,
		Reason: reason,
	}
}

func countAll(text string, words []string) int {
	n := 0
	for _, w := range words {
		n += strings.Count(text, w)
	}
	return n
}
