package models

import (
	"time"

	"github.com/lib/pq"
)

// Message delivery states, ordered. A message never moves backwards along
// sending -> sent -> delivered -> read; failed is terminal.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

var statusRank = map[string]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanAdvanceStatus reports whether a transition from one status to another is
// allowed: monotonically non-decreasing, with failed reachable from any
// non-terminal state and never overwritten.
func CanAdvanceStatus(from, to string) bool {
	if from == StatusFailed {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank >= fromRank
}

// AdvanceStatus returns target when the transition is a legal forward move,
// otherwise the current status is kept unchanged.
func AdvanceStatus(current, target string) string {
	if !CanAdvanceStatus(current, target) {
		return current
	}
	if target != StatusFailed && statusRank[target] <= statusRank[current] {
		return current
	}
	return target
}

// Message represents a chat message. DeliveredTo and ReadBy are sets of
// participant ids excluding the sender, stored as integer arrays.
type Message struct {
	ID             int           `db:"id" json:"id"`
	ConversationID int           `db:"conversation_id" json:"conversation_id"`
	SenderID       int           `db:"sender_id" json:"sender_id"`
	Content        string        `db:"content" json:"content"`
	Status         string        `db:"status" json:"status"`
	DeliveredTo    pq.Int64Array `db:"delivered_to" json:"delivered_to"`
	ReadBy         pq.Int64Array `db:"read_by" json:"read_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// DeliveredToContains reports whether userID is already in the delivered set.
func (m Message) DeliveredToContains(userID int) bool {
	for _, id := range m.DeliveredTo {
		if int(id) == userID {
			return true
		}
	}
	return false
}

// ReadByContains reports whether userID is already in the read set.
func (m Message) ReadByContains(userID int) bool {
	for _, id := range m.ReadBy {
		if int(id) == userID {
			return true
		}
	}
	return false
}
