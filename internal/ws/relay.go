package ws

import (
	"context"
	"errors"
	"log"

	"relay-service/internal/models"
	"relay-service/internal/observability"
	"relay-service/internal/repositories"
)

var (
	ErrEmptyContent   = errors.New("message content is required")
	ErrNoConversation = errors.New("conversation reference is required")
	ErrNotParticipant = errors.New("sender is not a conversation participant")
)

// MessageRelay accepts a composed message, persists it, and pushes it to
// every participant currently reachable through the registry. Delivery
// tracking rides on the same path: participants with at least one live
// connection are folded into the message's delivered set and the sender is
// told about the progress.
type MessageRelay struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	registry      *Registry
	channels      *Channels
}

// NewMessageRelay constructs a MessageRelay.
func NewMessageRelay(messages repositories.MessageRepository, conversations repositories.ConversationRepository, registry *Registry, channels *Channels) *MessageRelay {
	return &MessageRelay{
		messages:      messages,
		conversations: conversations,
		registry:      registry,
		channels:      channels,
	}
}

// Send relays one message. origin is the emitting connection when the send
// arrived over a websocket, nil for REST sends; it only suppresses the
// conversation-channel echo back to the emitting session.
//
// Malformed input is rejected before any persistence. Message creation
// failure is fatal to the send. The latest-message pointer and the unread
// counters are independent best-effort writes: a crash in between leaves the
// message durable and the counters stale, which the unread read path recovers
// by recomputing from the message collection.
func (r *MessageRelay) Send(ctx context.Context, origin *Conn, senderID int, conversationID int, content string, tempID string) (models.Message, error) {
	if conversationID == 0 {
		return models.Message{}, ErrNoConversation
	}
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	conv, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return models.Message{}, ErrNotParticipant
	}

	msg, err := r.messages.Create(ctx, conversationID, senderID, content)
	if err != nil {
		return models.Message{}, err
	}
	observability.IncMessageRelayed()

	if err := r.conversations.SetLatestMessage(ctx, conversationID, msg.ID, msg.CreatedAt); err != nil {
		log.Printf("latest-message update failed conversation=%d message=%d: %v", conversationID, msg.ID, err)
	}
	if err := r.conversations.IncrementUnread(ctx, conversationID, senderID); err != nil {
		log.Printf("unread increment failed conversation=%d: %v", conversationID, err)
	}

	// Confirm persistence to the sender's sessions when the client composed
	// the message under a temporary id.
	if tempID != "" {
		r.channels.PublishPersonal(senderID, NewMessageStatusEvent(msg.ID, tempID, msg.Status))
	}

	reached := r.fanOut(conv, msg)

	// Echo to the conversation channel for the sender's other sessions.
	r.channels.PublishConversationExcept(conversationID, origin, NewMessageEvent(msg))

	if len(reached) > 0 {
		msg = r.trackDelivery(ctx, msg, reached)
	}
	return msg, nil
}

// fanOut pushes the message to each non-sender participant's live
// connections and reports which participants were reachable. A write failure
// on one connection never aborts the rest of the fan-out, but that
// connection is torn down and only participants that took at least one frame
// count as reached.
func (r *MessageRelay) fanOut(conv models.Conversation, msg models.Message) []int {
	event := NewMessageEvent(msg)
	var reached []int
	for _, p := range conv.Participants {
		if p.UserID == msg.SenderID {
			continue
		}
		delivered := false
		for _, conn := range r.registry.LivesOf(p.UserID) {
			if err := conn.Send(event); err != nil {
				log.Printf("message push failed conn=%s user=%d: %v", conn.ID, p.UserID, err)
				conn.Close()
				r.channels.Drop(conn)
				continue
			}
			delivered = true
		}
		if delivered {
			reached = append(reached, p.UserID)
		}
	}
	return reached
}

// trackDelivery folds the reached participants into delivered_to, advances
// the status, and tells the sender's sessions about the progress. If nobody
// was reachable the message stays at sent and delivery completes later via
// the backlog fetch on reconnect.
func (r *MessageRelay) trackDelivery(ctx context.Context, msg models.Message, reached []int) models.Message {
	updated, err := r.messages.MarkDelivered(ctx, msg.ID, reached)
	if err != nil {
		log.Printf("delivery update failed message=%d: %v", msg.ID, err)
		return msg
	}
	observability.IncDeliveryReceipt()
	r.channels.PublishPersonal(msg.SenderID, NewDeliveryProgressEvent(updated.ID, updated.DeliveredTo))
	return updated
}
