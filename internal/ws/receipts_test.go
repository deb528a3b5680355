package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-service/internal/mocks"
)

func newReceiptsFixture() (*ReadReceipts, *mocks.MessageRepositoryMock, *mocks.ConversationRepositoryMock, *Channels) {
	messages := new(mocks.MessageRepositoryMock)
	conversations := new(mocks.ConversationRepositoryMock)
	channels := NewChannels()
	return NewReadReceipts(messages, conversations, channels), messages, conversations, channels
}

func TestReadReceiptsMarkReadNotifiesConversation(t *testing.T) {
	receipts, messages, conversations, channels := newReceiptsFixture()

	peer, peerSock := newTestConn(1)
	channels.JoinConversation(5, peer)

	messages.On("MarkRead", mock.Anything, 5, 2).Return(int64(3), nil).Once()
	conversations.On("ResetUnread", mock.Anything, 5, 2).Return(nil).Once()

	require.NoError(t, receipts.MarkRead(context.Background(), 5, 2))

	var event ReadReceiptEvent
	peerSock.lastFrame(t, &event)
	require.Equal(t, "read_receipt", event.Type)
	require.Equal(t, 5, event.ConversationID)
	require.Equal(t, 2, event.UserID)

	messages.AssertExpectations(t)
	conversations.AssertExpectations(t)
}

func TestReadReceiptsMarkReadIsIdempotent(t *testing.T) {
	receipts, messages, conversations, channels := newReceiptsFixture()

	peer, peerSock := newTestConn(1)
	channels.JoinConversation(5, peer)

	messages.On("MarkRead", mock.Anything, 5, 2).Return(int64(0), nil).Twice()
	conversations.On("ResetUnread", mock.Anything, 5, 2).Return(nil).Twice()

	require.NoError(t, receipts.MarkRead(context.Background(), 5, 2))
	require.NoError(t, receipts.MarkRead(context.Background(), 5, 2))

	require.Equal(t, []string{"read_receipt", "read_receipt"}, peerSock.eventTypes(t))
	messages.AssertExpectations(t)
}

func TestReadReceiptsResetFailureStillNotifies(t *testing.T) {
	receipts, messages, conversations, channels := newReceiptsFixture()

	peer, peerSock := newTestConn(1)
	channels.JoinConversation(5, peer)

	messages.On("MarkRead", mock.Anything, 5, 2).Return(int64(1), nil).Once()
	conversations.On("ResetUnread", mock.Anything, 5, 2).Return(assert.AnError).Once()

	require.NoError(t, receipts.MarkRead(context.Background(), 5, 2))
	require.Equal(t, []string{"read_receipt"}, peerSock.eventTypes(t))
}

func TestReadReceiptsBulkUpdateFailureIsFatal(t *testing.T) {
	receipts, messages, conversations, channels := newReceiptsFixture()

	peer, peerSock := newTestConn(1)
	channels.JoinConversation(5, peer)

	messages.On("MarkRead", mock.Anything, 5, 2).Return(int64(0), assert.AnError).Once()

	require.Error(t, receipts.MarkRead(context.Background(), 5, 2))
	require.Empty(t, peerSock.frames)
	conversations.AssertNotCalled(t, "ResetUnread", mock.Anything, mock.Anything, mock.Anything)
}

func TestReadReceiptsRejectsMissingConversation(t *testing.T) {
	receipts, messages, _, _ := newReceiptsFixture()

	require.ErrorIs(t, receipts.MarkRead(context.Background(), 0, 2), ErrNoConversation)
	messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}
