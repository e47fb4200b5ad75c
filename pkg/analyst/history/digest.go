package history

import (
	"strings"

	"ai-marketchat-be/pkg/llm"
)

// DefaultWindow is how many stored messages feed a turn's context.
const DefaultWindow = 10

// Digest renders messages (oldest first) as "ROLE: content" lines.
func Digest(messages []llm.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// Contents returns the message bodies in the same order, for ticker fallback.
func Contents(messages []llm.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

// Window keeps the newest n messages.
func Window(messages []llm.Message, n int) []llm.Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
