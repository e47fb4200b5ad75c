package constant

import "errors"

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	ChatIDPrefix = "chat_"

	// Number of stored messages fed back to the model on each turn.
	HistoryWindow = 10
	// Number of conversations returned by the recent-chats listing.
	RecentChatsLimit = 50

	// Shown to clients when a turn fails after its stream has started.
	ChatTurnErrorMessage = "Something went wrong while answering. Please try again."
)

// Event codes published on the internal bus and mirrored to NATS as events.<code>.
const (
	EventChatTurnCompleted    = "CHAT_TURN_COMPLETED"
	EventConversationDeleted  = "CONVERSATION_DELETED"
	ChatEventsTopic           = "chat_events"
	NotificationSubjectFilter = "events.>"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrConversationNotFound = errors.New("conversation not found")
)
