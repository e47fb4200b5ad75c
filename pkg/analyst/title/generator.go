package title

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-marketchat-be/pkg/llm"
)

const (
	DefaultTimeout = 15 * time.Second

	seedRunes = 50
	maxRunes  = 60
	maxWords  = 5
)

// Generator asks the model for a short conversation title.
type Generator struct {
	provider llm.LLMProvider
	timeout  time.Duration
}

func NewGenerator(provider llm.LLMProvider, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{provider: provider, timeout: timeout}
}

// Fallback is the title used when the model cannot produce one.
func Fallback(now time.Time) string {
	return "Chat - " + now.Format("2006-01-02")
}

// Generate never fails: any model error or empty answer yields Fallback(now).
func (g *Generator) Generate(ctx context.Context, firstMessage string, now time.Time) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	p := fmt.Sprintf(
		`Generate a short title (max %d words) for a stock market chat that starts with: "%s". Return only the title, nothing else.`,
		maxWords, truncate(firstMessage, seedRunes),
	)

	out, err := g.provider.Generate(ctx, p, llm.WithTemperature(0.7), llm.WithMaxTokens(20))
	if err != nil {
		return Fallback(now)
	}

	if t := Clean(out); t != "" {
		return t
	}
	return Fallback(now)
}

// Clean trims whitespace and wrapping quotes, keeps the first line, and caps the length.
func Clean(raw string) string {
	t := strings.TrimSpace(raw)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "Title:")
	t = strings.Trim(strings.TrimSpace(t), `"'*`+"`")
	return strings.TrimSpace(truncate(t, maxRunes))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Preview shortens a message for history listings.
func Preview(content string) string {
	if content == "" {
		return "No messages"
	}
	return truncate(content, seedRunes)
}
