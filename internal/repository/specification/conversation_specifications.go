package specification

import (
	"gorm.io/gorm"
)

// ByConversationKey selects a conversation by its caller-supplied id.
type ByConversationKey struct {
	ID string
}

func (s ByConversationKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// ByConversationID selects the messages of one conversation.
type ByConversationID struct {
	ConversationID string
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// ByRole filters messages by author role.
type ByRole struct {
	Role string
}

func (s ByRole) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("role = ?", s.Role)
}
