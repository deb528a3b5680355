package ws

import (
	"context"
	"log"

	"relay-service/internal/observability"
	"relay-service/internal/repositories"
)

// ReadReceipts propagates a participant's "I have read conversation C"
// signal: bulk-mark the unread messages, zero the participant's counter, and
// tell the other sessions in the conversation.
//
// The path does not check that a message was previously recorded as
// delivered before marking it read; a fast reader can move a message
// straight from sent to read.
type ReadReceipts struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	channels      *Channels
}

// NewReadReceipts constructs a ReadReceipts propagator.
func NewReadReceipts(messages repositories.MessageRepository, conversations repositories.ConversationRepository, channels *Channels) *ReadReceipts {
	return &ReadReceipts{
		messages:      messages,
		conversations: conversations,
		channels:      channels,
	}
}

// MarkRead applies the bulk update. Idempotent: a re-signal matches no rows
// and still resets the (already zero) counter. The bulk update and the
// counter reset are independent writes; a failure in either is logged and
// the receipt event still goes out so peer sessions converge.
func (r *ReadReceipts) MarkRead(ctx context.Context, conversationID int, userID int) error {
	if conversationID == 0 {
		return ErrNoConversation
	}

	marked, err := r.messages.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if marked > 0 {
		observability.IncReadReceipt()
	}

	if err := r.conversations.ResetUnread(ctx, conversationID, userID); err != nil {
		log.Printf("unread reset failed conversation=%d user=%d: %v", conversationID, userID, err)
	}

	r.channels.PublishConversation(conversationID, NewReadReceiptEvent(conversationID, userID))
	return nil
}
