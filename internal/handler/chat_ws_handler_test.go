package handler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/repository/memory"
	"ai-marketchat-be/internal/service"
	internalWS "ai-marketchat-be/internal/websocket"
	"ai-marketchat-be/pkg/analyst/stream"
	"ai-marketchat-be/pkg/llm"
	"ai-marketchat-be/pkg/marketdata"
	"ai-marketchat-be/pkg/sentiment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoLLM struct{}

func (echoLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "HDFC looks fine", nil
}

func (echoLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "HDFC chat", nil
}

type noQuotes struct{}

func (noQuotes) Fetch(ctx context.Context, symbol string) marketdata.Result {
	return marketdata.Result{Status: marketdata.StatusUnavailable, Reason: "offline"}
}

type neutral struct{}

func (neutral) Classify(ctx context.Context, text string) sentiment.Result {
	return sentiment.Result{Label: sentiment.Neutral, Score: 0.5, Status: sentiment.StatusOK}
}

type fixedTitle struct{}

func (fixedTitle) Generate(ctx context.Context, firstMessage string, now time.Time) string {
	return "HDFC chat"
}

func newSocketHandler() *ChatSocketHandler {
	nop := logger.NewNopLogger()
	chat := service.NewChatService(
		memory.NewRepositoryFactory(memory.NewStore()),
		echoLLM{},
		fixedTitle{},
		noQuotes{},
		neutral{},
		nil,
		service.ChatOptions{},
		nop,
		nop,
	)
	return NewChatSocketHandler(chat, nil, nop)
}

func drain(t *testing.T, client *internalWS.Client) []stream.Event {
	t.Helper()
	var out []stream.Event
	for {
		select {
		case raw := <-client.Send:
			var ev stream.Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHandleFrameRunsTurn(t *testing.T) {
	h := newSocketHandler()
	client := internalWS.NewClient(nil, nil, nil)

	h.HandleFrame(client, []byte(`{"chat_id":"chat_ws","messages":[{"role":"user","content":"Thoughts on HDFC?"}]}`))

	got := drain(t, client)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, stream.TypeStart, got[0].Type)
	assert.Equal(t, "chat_ws", got[0].ChatID)
	assert.Equal(t, "HDFC", got[0].Ticker)
	assert.Equal(t, stream.TypeDone, got[len(got)-1].Type)

	var text strings.Builder
	for _, ev := range got[1 : len(got)-1] {
		require.Equal(t, stream.TypeToken, ev.Type)
		text.WriteString(ev.Text)
	}
	assert.Equal(t, "HDFC looks fine", text.String())
}

func TestHandleFrameReportsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"garbage", `nope`, "Invalid request body"},
		{"no messages", `{"messages":[]}`, "Messages"},
		{"blank query", `{"messages":[{"role":"user","content":" "}]}`, constant.ErrInvalidInput.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSocketHandler()
			client := internalWS.NewClient(nil, nil, nil)

			h.HandleFrame(client, []byte(tt.body))

			got := drain(t, client)
			require.Len(t, got, 2)
			assert.Equal(t, stream.TypeError, got[0].Type)
			assert.Contains(t, got[0].Message, tt.want)
			assert.Equal(t, stream.TypeDone, got[1].Type)
		})
	}
}
