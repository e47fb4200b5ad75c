package stream

import (
	"context"
	"regexp"
	"time"
)

const DefaultReplayDelay = 10 * time.Millisecond

var whitespace = regexp.MustCompile(`\s+`)

// Split cuts text at whitespace boundaries keeping the separators as their own pieces, so
// concatenating the result reproduces text exactly.
func Split(text string) []string {
	var out []string
	last := 0
	for _, loc := range whitespace.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			out = append(out, text[last:loc[0]])
		}
		out = append(out, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// Replay emits a completed answer piece by piece with delay between pieces. It stops early
// when ctx is cancelled or emit fails.
func Replay(ctx context.Context, text string, delay time.Duration, emit func(string) error) error {
	for _, piece := range Split(text) {
		if err := emit(piece); err != nil {
			return err
		}
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}
