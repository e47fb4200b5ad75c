package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	Id             uuid.UUID
	ConversationId string
	Role           string
	Content        string
	Metadata       *MessageMetadata
	CreatedAt      time.Time
}

// MessageMetadata records what an assistant answer was grounded on.
type MessageMetadata struct {
	Ticker          string  `json:"ticker,omitempty"`
	QuoteStatus     string  `json:"quote_status,omitempty"`
	QuoteSource     string  `json:"quote_source,omitempty"`
	SentimentLabel  string  `json:"sentiment_label,omitempty"`
	SentimentScore  float64 `json:"sentiment_score,omitempty"`
	SentimentStatus string  `json:"sentiment_status,omitempty"`
	StreamMode      string  `json:"stream_mode,omitempty"`
}

// ConversationSummary is a history listing row.
type ConversationSummary struct {
	Id        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Preview   string
}
