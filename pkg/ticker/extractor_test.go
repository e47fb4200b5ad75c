package ticker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOk bool
	}{
		{name: "plain ticker", text: "Analyze RELIANCE trends", want: "RELIANCE", wantOk: true},
		{name: "skips exchange names", text: "Is NSE or BSE better for TCS", want: "TCS", wantOk: true},
		{name: "skips trade actions", text: "Should I BUY or SELL INFY", want: "INFY", wantOk: true},
		{name: "first match wins", text: "Compare HDFCBANK with ICICIBANK", want: "HDFCBANK", wantOk: true},
		{name: "only excluded words", text: "BUY STOCK PRICE INDIA", wantOk: false},
		{name: "lowercase ignored", text: "what about reliance", wantOk: false},
		{name: "single letter ignored", text: "Is A a good pick", wantOk: false},
		{name: "too long ignored", text: "ABCDEFGHIJK is not a symbol", wantOk: false},
		{name: "attached digits are not a word boundary", text: "scrip ABC123", wantOk: false},
		{name: "punctuation is a boundary", text: "Thoughts on (WIPRO)?", want: "WIPRO", wantOk: true},
		{name: "empty", text: "", wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractNeverReturnsExcludedWord(t *testing.T) {
	inputs := []string{
		"NSE BSE BUY SELL HOLD STOCK PRICE INDIA",
		"INDIA NSE TATAMOTORS",
		"HOLD", "PRICE of SBIN on BSE",
		strings.Repeat("SELL ", 50) + "ITC",
	}
	for _, in := range inputs {
		got, ok := Extract(in)
		if ok {
			assert.False(t, IsExcluded(got), "input %q returned excluded word %q", in, got)
		}
	}
}

func TestResolve(t *testing.T) {
	history := []string{
		"Tell me about TCS",
		"TCS is trading at ...",
		"and what about its margins?",
	}

	t.Run("current message wins", func(t *testing.T) {
		got, ok := Resolve("Now check INFY", history)
		assert.True(t, ok)
		assert.Equal(t, "INFY", got)
	})

	t.Run("falls back to newest history entry", func(t *testing.T) {
		got, ok := Resolve("is it a buy?", append(history, "Switching to WIPRO"))
		assert.True(t, ok)
		assert.Equal(t, "WIPRO", got)
	})

	t.Run("older history used when newer has none", func(t *testing.T) {
		got, ok := Resolve("is it a buy?", history)
		assert.True(t, ok)
		assert.Equal(t, "TCS", got)
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		_, ok := Resolve("what is a P/E ratio?", []string{"hello", "hi there"})
		assert.False(t, ok)
	})
}
