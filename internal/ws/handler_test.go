package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-service/internal/mocks"
	"relay-service/internal/models"
)

type gatewayFixture struct {
	gateway       *Gateway
	users         *mocks.UserRepositoryMock
	messages      *mocks.MessageRepositoryMock
	conversations *mocks.ConversationRepositoryMock
	registry      *Registry
	channels      *Channels
}

func newGatewayFixture() *gatewayFixture {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conversations := new(mocks.ConversationRepositoryMock)
	registry := NewRegistry()
	channels := NewChannels()

	gateway := NewGateway(
		registry,
		channels,
		NewPresencePublisher(users, registry),
		NewMessageRelay(messages, conversations, registry, channels),
		NewReadReceipts(messages, conversations, channels),
		NewAvailabilityProbe(users),
		conversations,
		nil,
		nil,
	)
	return &gatewayFixture{
		gateway:       gateway,
		users:         users,
		messages:      messages,
		conversations: conversations,
		registry:      registry,
		channels:      channels,
	}
}

func (f *gatewayFixture) dispatch(conn *Conn, frame string) Result {
	return f.gateway.dispatcher.Dispatch(context.Background(), conn, []byte(frame))
}

func TestGatewayAnonymousRestrictions(t *testing.T) {
	f := newGatewayFixture()
	conn, _ := newTestConn(0)

	for _, frame := range []string{
		`{"type":"send_message","payload":{"conversation_id":5,"content":"hello"}}`,
		`{"type":"mark_read","payload":{"conversation_id":5}}`,
		`{"type":"join_conversation","payload":{"conversation_id":5}}`,
	} {
		result := f.dispatch(conn, frame)
		require.Equal(t, ResultRejected, result.Kind, frame)
		require.ErrorIs(t, result.Err, ErrAuthRequired, frame)
	}
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGatewayAnonymousMayProbeAvailability(t *testing.T) {
	f := newGatewayFixture()
	conn, sock := newTestConn(0)

	f.users.On("EmailTaken", mock.Anything, "a@b.c").Return(false, nil).Once()

	result := f.dispatch(conn, `{"type":"check_email","payload":{"email":"a@b.c"}}`)
	require.Equal(t, ResultOK, result.Kind)

	var event AvailabilityEvent
	sock.lastFrame(t, &event)
	require.True(t, event.Available)
}

func TestGatewayProbeWriteFailureIsTransient(t *testing.T) {
	f := newGatewayFixture()
	conn, sock := newTestConn(0)
	sock.failWrites = true

	f.users.On("EmailTaken", mock.Anything, "a@b.c").Return(false, nil).Once()

	result := f.dispatch(conn, `{"type":"check_email","payload":{"email":"a@b.c"}}`)
	require.Equal(t, ResultTransient, result.Kind)
}

func TestGatewayRegisterAuthenticatedIdentityWins(t *testing.T) {
	f := newGatewayFixture()
	conn, sock := newTestConn(7)

	result := f.dispatch(conn, `{"type":"register","payload":{"user_id":99}}`)
	require.Equal(t, ResultOK, result.Kind)

	event := NewReadReceiptEvent(1, 7)
	f.channels.PublishPersonal(7, event)
	f.channels.PublishPersonal(99, event)

	require.Len(t, sock.frames, 1, "only the authenticated identity's channel reaches the session")
}

func TestGatewayRegisterAnonymousUsesClaimedID(t *testing.T) {
	f := newGatewayFixture()
	conn, sock := newTestConn(0)

	result := f.dispatch(conn, `{"type":"register","payload":{"user_id":42}}`)
	require.Equal(t, ResultOK, result.Kind)

	f.channels.PublishPersonal(42, NewReadReceiptEvent(1, 42))
	require.Len(t, sock.frames, 1)
}

func TestGatewayRegisterWithoutIdentityRejected(t *testing.T) {
	f := newGatewayFixture()
	conn, _ := newTestConn(0)

	result := f.dispatch(conn, `{"type":"register","payload":{}}`)
	require.Equal(t, ResultRejected, result.Kind)
	require.ErrorIs(t, result.Err, ErrAuthRequired)
}

func TestGatewayJoinConversationChecksMembership(t *testing.T) {
	f := newGatewayFixture()
	conn, sock := newTestConn(7)

	f.conversations.On("IsParticipant", mock.Anything, 5, 7).Return(false, nil).Once()
	result := f.dispatch(conn, `{"type":"join_conversation","payload":{"conversation_id":5}}`)
	require.Equal(t, ResultRejected, result.Kind)
	require.ErrorIs(t, result.Err, ErrNotParticipant)

	f.conversations.On("IsParticipant", mock.Anything, 5, 7).Return(true, nil).Once()
	result = f.dispatch(conn, `{"type":"join_conversation","payload":{"conversation_id":5}}`)
	require.Equal(t, ResultOK, result.Kind)

	f.channels.PublishConversation(5, NewReadReceiptEvent(5, 2))
	require.Len(t, sock.frames, 1)
	f.conversations.AssertExpectations(t)
}

func TestGatewaySendMessageMapsRelayErrors(t *testing.T) {
	f := newGatewayFixture()
	conn, _ := newTestConn(7)

	result := f.dispatch(conn, `{"type":"send_message","payload":{"conversation_id":5,"content":""}}`)
	require.Equal(t, ResultRejected, result.Kind)
	require.ErrorIs(t, result.Err, ErrEmptyContent)

	f.conversations.On("Get", mock.Anything, 5).Return(models.Conversation{}, assert.AnError).Once()
	result = f.dispatch(conn, `{"type":"send_message","payload":{"conversation_id":5,"content":"hi"}}`)
	require.Equal(t, ResultPersistence, result.Kind)
}
