package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-marketchat-be/internal/dto"
	"ai-marketchat-be/internal/pkg/serverutils"
	"ai-marketchat-be/pkg/analyst/stream"
)

// apiClient talks to the REST surface of the chat server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Ask sends one user message and calls onEvent for every frame until [DONE].
func (c *apiClient) Ask(ctx context.Context, chatID, message string, onEvent func(stream.Event)) error {
	body, err := json.Marshal(dto.ChatRequest{
		ChatId:   chatID,
		Messages: []dto.ChatMessageDTO{{Role: "user", Content: message}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return readEvents(resp.Body, onEvent)
}

// readEvents parses an SSE body. It returns when the terminator arrives or the body ends.
func readEvents(r io.Reader, onEvent func(stream.Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}
		var ev stream.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return fmt.Errorf("malformed frame %q: %w", payload, err)
		}
		onEvent(ev)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream ended without [DONE]")
}

func (c *apiClient) History(ctx context.Context) (*dto.ChatListResponse, error) {
	var out dto.ChatListResponse
	return &out, c.getJSON(ctx, http.MethodGet, "/api/chat/history", &out)
}

func (c *apiClient) Messages(ctx context.Context, chatID string) (*dto.ChatMessagesResponse, error) {
	var out dto.ChatMessagesResponse
	return &out, c.getJSON(ctx, http.MethodGet, "/api/chat/history/"+url.PathEscape(chatID), &out)
}

func (c *apiClient) Delete(ctx context.Context, chatID string) (*dto.DeleteChatResponse, error) {
	var out dto.DeleteChatResponse
	return &out, c.getJSON(ctx, http.MethodDelete, "/api/chat/"+url.PathEscape(chatID), &out)
}

func (c *apiClient) getJSON(ctx context.Context, method, path string, data any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	envelope := serverutils.BaseResponse[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, data)
}

func decodeError(resp *http.Response) error {
	var envelope serverutils.BaseResponse[any]
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, envelope.Message)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
