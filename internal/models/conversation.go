package models

import (
	"database/sql"
	"time"
)

// Conversation is a fixed-membership chat between two or more users.
type Conversation struct {
	ID              int           `db:"id" json:"id"`
	LatestMessageID sql.NullInt64 `db:"latest_message_id" json:"latest_message_id,omitempty"`
	LatestMessageAt time.Time     `db:"latest_message_at" json:"latest_message_at"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`

	// Participants is loaded alongside the row; every participant carries
	// its own unread counter, defaulting to zero.
	Participants []Participant `json:"participants"`
}

// Participant is one member of a conversation with their unread counter.
type Participant struct {
	ConversationID int `db:"conversation_id" json:"conversation_id"`
	UserID         int `db:"user_id" json:"user_id"`
	UnreadCount    int `db:"unread_count" json:"unread_count"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the member ids in load order.
func (c Conversation) ParticipantIDs() []int {
	ids := make([]int, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// UnreadCount is the per-conversation unread counter view for one user.
type UnreadCount struct {
	ConversationID int `db:"conversation_id" json:"conversation_id"`
	UserID         int `db:"user_id" json:"user_id"`
	Count          int `db:"unread_count" json:"count"`
}
