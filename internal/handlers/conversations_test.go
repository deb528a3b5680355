package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-service/internal/mocks"
	"relay-service/internal/models"
	"relay-service/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authedAs(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func conversationRouter(userID int, conversations *mocks.ConversationRepositoryMock, channels *ws.Channels) *gin.Engine {
	h := NewConversationHandler(conversations, channels)
	router := gin.New()
	router.Use(authedAs(userID))
	router.POST("/chats", h.Start)
	router.GET("/chats", h.List)
	router.GET("/chats/unread", h.Unread)
	return router
}

func TestConversationStartAnnouncesToParticipants(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	channels := ws.NewChannels()

	conv := models.Conversation{
		ID: 5,
		Participants: []models.Participant{
			{ConversationID: 5, UserID: 1},
			{ConversationID: 5, UserID: 2},
		},
	}
	conversations.On("CreateOrGet", mock.Anything, 1, 2).Return(conv, nil).Once()

	router := conversationRouter(1, conversations, channels)

	body := bytes.NewBufferString(`{"user_id":2}`)
	req := httptest.NewRequest(http.MethodPost, "/chats", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got models.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 5, got.ID)
	conversations.AssertExpectations(t)
}

func TestConversationStartRejectsSelf(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	router := conversationRouter(1, conversations, ws.NewChannels())

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"user_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	conversations.AssertNotCalled(t, "CreateOrGet", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationStartRequiresTargetUser(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	router := conversationRouter(1, conversations, ws.NewChannels())

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationList(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("ListForUser", mock.Anything, 1).Return([]models.Conversation{{ID: 5}}, nil).Once()

	router := conversationRouter(1, conversations, ws.NewChannels())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conversations"`)
}

func TestConversationUnread(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("UnreadCounts", mock.Anything, 1).
		Return([]models.UnreadCount{{ConversationID: 5, UserID: 1, Count: 3}}, nil).Once()

	router := conversationRouter(1, conversations, ws.NewChannels())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats/unread", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Unread []models.UnreadCount `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Unread, 1)
	assert.Equal(t, 3, resp.Unread[0].Count)
}

func TestConversationListRepositoryError(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("ListForUser", mock.Anything, 1).Return(nil, assert.AnError).Once()

	router := conversationRouter(1, conversations, ws.NewChannels())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
