package ws

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"relay-service/internal/models"
)

// InboundKind enumerates the signals a connection may emit. The dispatch
// table in dispatcher.go is keyed by these values; anything else is rejected.
type InboundKind string

const (
	KindRegister         InboundKind = "register"
	KindJoinConversation InboundKind = "join_conversation"
	KindSendMessage      InboundKind = "send_message"
	KindMarkRead         InboundKind = "mark_read"
	KindCheckEmail       InboundKind = "check_email"
	KindCheckPhone       InboundKind = "check_phone"
)

// Inbound is the wire envelope for client frames.
type Inbound struct {
	Type    InboundKind     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RegisterPayload struct {
	UserID int `json:"user_id"`
}

type JoinConversationPayload struct {
	ConversationID int `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID int    `json:"conversation_id"`
	Content        string `json:"content"`
	TempID         string `json:"temp_id,omitempty"`
}

type MarkReadPayload struct {
	ConversationID int `json:"conversation_id"`
}

type CheckEmailPayload struct {
	Email string `json:"email"`
}

type CheckPhonePayload struct {
	Phone string `json:"phone"`
}

// Outbound event kinds.
const (
	eventPresenceChanged     = "presence_changed"
	eventMessageReceived     = "message_received"
	eventMessageStatus       = "message_status"
	eventDeliveryProgress    = "delivery_progress"
	eventReadReceipt         = "read_receipt"
	eventAvailabilityResult  = "availability_result"
	eventConversationCreated = "conversation_created"
)

// PresenceEvent announces an online/offline transition.
type PresenceEvent struct {
	Type     string    `json:"type"`
	UserID   int       `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// MessageEvent carries a full message record to a recipient session.
type MessageEvent struct {
	Type    string         `json:"type"`
	Message models.Message `json:"message"`
}

// MessageStatusEvent acknowledges persistence of a client-composed message.
type MessageStatusEvent struct {
	Type      string `json:"type"`
	MessageID int    `json:"message_id"`
	TempID    string `json:"temp_id,omitempty"`
	Status    string `json:"status"`
}

// DeliveryProgressEvent reports the current delivered set to the sender.
type DeliveryProgressEvent struct {
	Type        string        `json:"type"`
	MessageID   int           `json:"message_id"`
	DeliveredTo pq.Int64Array `json:"delivered_to"`
}

// ReadReceiptEvent tells a conversation that a participant has read it.
type ReadReceiptEvent struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id"`
	UserID         int    `json:"user_id"`
}

// AvailabilityEvent answers a uniqueness probe.
type AvailabilityEvent struct {
	Type      string `json:"type"`
	Field     string `json:"field"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// ConversationEvent announces a newly created conversation to its members.
type ConversationEvent struct {
	Type         string              `json:"type"`
	Conversation models.Conversation `json:"conversation"`
}

func NewPresenceEvent(userID int, online bool, lastSeen time.Time) PresenceEvent {
	return PresenceEvent{Type: eventPresenceChanged, UserID: userID, IsOnline: online, LastSeen: lastSeen}
}

func NewMessageEvent(msg models.Message) MessageEvent {
	return MessageEvent{Type: eventMessageReceived, Message: msg}
}

func NewMessageStatusEvent(messageID int, tempID string, status string) MessageStatusEvent {
	return MessageStatusEvent{Type: eventMessageStatus, MessageID: messageID, TempID: tempID, Status: status}
}

func NewDeliveryProgressEvent(messageID int, deliveredTo pq.Int64Array) DeliveryProgressEvent {
	return DeliveryProgressEvent{Type: eventDeliveryProgress, MessageID: messageID, DeliveredTo: deliveredTo}
}

func NewReadReceiptEvent(conversationID int, userID int) ReadReceiptEvent {
	return ReadReceiptEvent{Type: eventReadReceipt, ConversationID: conversationID, UserID: userID}
}

func NewAvailabilityEvent(field string, available bool, message string) AvailabilityEvent {
	return AvailabilityEvent{Type: eventAvailabilityResult, Field: field, Available: available, Message: message}
}

func NewConversationEvent(conv models.Conversation) ConversationEvent {
	return ConversationEvent{Type: eventConversationCreated, Conversation: conv}
}
