package nats

import (
	"encoding/json"
	"testing"
	"time"

	"ai-marketchat-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	envelope, err := json.Marshal(events.BaseEvent{
		Type:       "CHAT_TURN_COMPLETED",
		Data:       map[string]interface{}{"chat_id": "chat_1"},
		OccurredAt: at,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		subject  string
		body     []byte
		wantType string
		wantKey  string
		wantErr  bool
	}{
		{"envelope", "events.CHAT_TURN_COMPLETED", envelope, "CHAT_TURN_COMPLETED", "chat_id", false},
		{"bare payload", "events.CONVERSATION_DELETED", []byte(`{"chat_id":"chat_2"}`), "CONVERSATION_DELETED", "chat_id", false},
		{"garbage", "events.X", []byte(`not json`), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.subject, tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.EventType())
			assert.Contains(t, ev.Payload(), tt.wantKey)
			assert.False(t, ev.Timestamp().IsZero())
		})
	}
}

func TestDecodeKeepsTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	body, _ := json.Marshal(events.BaseEvent{Type: "T", Data: map[string]interface{}{}, OccurredAt: at})

	ev, err := Decode("events.T", body)
	require.NoError(t, err)
	assert.True(t, at.Equal(ev.Timestamp()))
}
