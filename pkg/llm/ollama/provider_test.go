package ollama

import (
	"ai-marketchat-be/pkg/llm"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.1", body.Model)
		assert.False(t, body.Stream)
		assert.Equal(t, 0.7, body.Options.Temperature)
		assert.Equal(t, 20, body.Options.NumPredict)
		assert.Equal(t, "assistant", body.Messages[1].Role)

		w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"Reliance outlook"},"done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "llama3.1").Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "model", Content: "hello"},
	}, llm.WithMaxTokens(20))

	require.NoError(t, err)
	assert.Equal(t, "Reliance outlook", out)
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)

		w.Write([]byte(`{"message":{"role":"assistant","content":"Trend"},"done":false}` + "\n"))
		w.Write([]byte("not json\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":" is up"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":"ignored"},"done":false}` + "\n"))
	}))
	defer srv.Close()

	var deltas []string
	full, err := NewOllamaProvider(srv.URL, "llama3.1").ChatStream(context.Background(),
		[]llm.Message{{Role: "user", Content: "x"}},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		}, llm.WithModel("qwen2"))

	require.NoError(t, err)
	assert.Equal(t, []string{"Trend", " is up"}, deltas)
	assert.Equal(t, "Trend is up", full)
}

func TestChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
