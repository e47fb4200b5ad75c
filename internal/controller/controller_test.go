package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/pkg/serverutils"
	"ai-marketchat-be/internal/repository/memory"
	"ai-marketchat-be/internal/service"
	"ai-marketchat-be/pkg/analyst/stream"
	"ai-marketchat-be/pkg/llm"
	"ai-marketchat-be/pkg/marketdata"
	"ai-marketchat-be/pkg/sentiment"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	answer string
	err    error
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.answer, s.err
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.answer, s.err
}

type staticTitles struct{}

func (staticTitles) Generate(ctx context.Context, firstMessage string, now time.Time) string {
	return "Test Chat"
}

type staticQuotes struct {
	result marketdata.Result
}

func (s staticQuotes) Fetch(ctx context.Context, symbol string) marketdata.Result {
	return s.result
}

type staticSentiment struct{}

func (staticSentiment) Classify(ctx context.Context, text string) sentiment.Result {
	return sentiment.Fallback(text, "test")
}

type stubMarket struct {
	snap *marketdata.Snapshot
	err  error
}

func (s *stubMarket) Quote(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	return s.snap, s.err
}

func (s *stubMarket) Name() string { return "STUB" }

func newTestApp(t *testing.T, model llm.LLMProvider, market marketdata.Provider) *fiber.App {
	t.Helper()
	factory := memory.NewRepositoryFactory(memory.NewStore())
	nop := logger.NewNopLogger()

	chatService := service.NewChatService(
		factory,
		model,
		staticTitles{},
		staticQuotes{result: marketdata.Result{Status: marketdata.StatusRateLimited, Reason: "Note"}},
		staticSentiment{},
		nil,
		service.ChatOptions{Streaming: true},
		nop,
		nop,
	)
	historyService := service.NewHistoryService(factory, nil, nop)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewChatController(chatService, historyService).RegisterRoutes(api)
	NewMarketController(service.NewMarketService(market, nop)).RegisterRoutes(api)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

// frames splits an SSE body into its data payloads.
func frames(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

func TestChatStreamsAndPersists(t *testing.T) {
	app := newTestApp(t, &scriptedLLM{answer: "Live data is unavailable for WIPRO."}, &stubMarket{})

	resp, body := do(t, app, "POST", "/api/chat", `{"chat_id":"chat_http","messages":[{"role":"user","content":"Should I look at WIPRO?"}]}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	data := frames(t, body)
	require.GreaterOrEqual(t, len(data), 3)
	assert.Equal(t, "[DONE]", data[len(data)-1])

	var start stream.Event
	require.NoError(t, json.Unmarshal([]byte(data[0]), &start))
	assert.Equal(t, stream.TypeStart, start.Type)
	assert.Equal(t, "chat_http", start.ChatID)
	assert.Equal(t, "WIPRO", start.Ticker)

	var text strings.Builder
	for _, d := range data[1 : len(data)-1] {
		var ev stream.Event
		require.NoError(t, json.Unmarshal([]byte(d), &ev))
		require.Equal(t, stream.TypeToken, ev.Type)
		text.WriteString(ev.Text)
	}
	assert.Equal(t, "Live data is unavailable for WIPRO.", text.String())

	resp, body = do(t, app, "GET", "/api/chat/history/chat_http", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"content":"Should I look at WIPRO?"`)

	resp, body = do(t, app, "GET", "/api/chat/history", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"id":"chat_http"`)
	assert.Contains(t, body, `"preview":"Should I look at WIPRO?"`)
}

func TestChatRejectsBadInput(t *testing.T) {
	app := newTestApp(t, &scriptedLLM{answer: "unused"}, &stubMarket{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no messages", `{"messages":[]}`},
		{"missing role", `{"messages":[{"content":"hi"}]}`},
		{"blank user message", `{"messages":[{"role":"user","content":"   "}]}`},
		{"assistant only", `{"messages":[{"role":"assistant","content":"hi"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, "POST", "/api/chat", tt.body)
			assert.Equal(t, 400, resp.StatusCode)
			assert.Contains(t, body, `"success":false`)
		})
	}

	_, body := do(t, app, "GET", "/api/chat/history", "")
	assert.Contains(t, body, `"chats":[]`)
}

func TestChatModelFailureIs500(t *testing.T) {
	app := newTestApp(t, &scriptedLLM{err: errors.New("model down")}, &stubMarket{})

	resp, body := do(t, app, "POST", "/api/chat", `{"messages":[{"role":"user","content":"hello"}]}`)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, body, "Internal Error")
}

func TestDeleteChat(t *testing.T) {
	app := newTestApp(t, &scriptedLLM{answer: "ok"}, &stubMarket{})

	resp, _ := do(t, app, "POST", "/api/chat", `{"chat_id":"chat_gone","messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, 200, resp.StatusCode)

	resp, body := do(t, app, "DELETE", "/api/chat/chat_gone", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"deleted":true`)

	resp, body = do(t, app, "DELETE", "/api/chat?chat_id=chat_gone", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"deleted":false`)

	resp, _ = do(t, app, "DELETE", "/api/chat", "")
	assert.Equal(t, 400, resp.StatusCode)

	_, body = do(t, app, "GET", "/api/chat/history?chat_id=chat_gone", "")
	assert.Contains(t, body, `"messages":[]`)
}

func TestStockQuote(t *testing.T) {
	snap := &marketdata.Snapshot{InputSymbol: "TCS", Symbol: "TCS.BSE", LatestPrice: 3890.25, Source: "ALPHA_VANTAGE"}

	tests := []struct {
		name   string
		body   string
		market *stubMarket
		status int
		want   string
	}{
		{"ok", `{"symbol":"tcs"}`, &stubMarket{snap: snap}, 200, `"latest_price":3890.25`},
		{"missing symbol", `{}`, &stubMarket{}, 400, "Please provide a stock symbol"},
		{"not found", `{"symbol":"NOPE"}`, &stubMarket{err: marketdata.ErrSymbolNotFound}, 404, "not found"},
		{"rate limited", `{"symbol":"TCS"}`, &stubMarket{err: marketdata.ErrRateLimited}, 429, "rate limit"},
		{"unavailable", `{"symbol":"TCS"}`, &stubMarket{err: marketdata.ErrUnavailable}, 502, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &scriptedLLM{}, tt.market)
			resp, body := do(t, app, "POST", "/api/stock", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body, tt.want)
		})
	}
}
