package stream

import (
	"encoding/json"
)

const (
	TypeStart = "start"
	TypeToken = "token"
	TypeError = "error"
	TypeDone  = "done"

	ModeStream = "stream"
	ModeReplay = "replay"
)

// DoneFrame terminates an SSE answer stream.
var DoneFrame = []byte("data: [DONE]\n\n")

// Event is one frame of a streamed answer. SSE and websocket transports share it.
type Event struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	Ticker  string `json:"ticker,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

func Start(chatID, ticker, mode string) Event {
	return Event{Type: TypeStart, ChatID: chatID, Ticker: ticker, Mode: mode}
}

func Token(text string) Event {
	return Event{Type: TypeToken, Text: text}
}

func Error(message string) Event {
	return Event{Type: TypeError, Message: message}
}

// SSE encodes ev as a "data: {...}\n\n" frame.
func SSE(ev Event) []byte {
	raw, _ := json.Marshal(ev)
	out := make([]byte, 0, len(raw)+8)
	out = append(out, "data: "...)
	out = append(out, raw...)
	return append(out, '\n', '\n')
}
