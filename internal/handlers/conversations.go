package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"relay-service/internal/repositories"
	"relay-service/internal/ws"
)

// ConversationHandler manages conversation endpoints.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	channels      *ws.Channels
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository, channels *ws.Channels) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, channels: channels}
}

// Start creates or returns the two-party conversation with another user and
// announces it to both parties' live sessions.
func (h *ConversationHandler) Start(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start conversation with yourself"})
		return
	}

	conv, err := h.conversations.CreateOrGet(c.Request.Context(), userID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	event := ws.NewConversationEvent(conv)
	for _, p := range conv.Participants {
		h.channels.PublishPersonal(p.UserID, event)
	}

	c.JSON(http.StatusOK, conv)
}

// List returns the caller's conversations, newest activity first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Unread returns the caller's unread counts per conversation.
func (h *ConversationHandler) Unread(c *gin.Context) {
	userID := c.GetInt("userID")

	counts, err := h.conversations.UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": counts})
}
