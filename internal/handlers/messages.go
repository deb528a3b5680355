package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"relay-service/internal/repositories"
	"relay-service/internal/ws"
)

// MessageHandler exposes the REST message surface: sending through the
// relay, the paginated backlog fetch, and the mark-read signal.
type MessageHandler struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	relay         *ws.MessageRelay
	receipts      *ws.ReadReceipts
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, conversations repositories.ConversationRepository, relay *ws.MessageRelay, receipts *ws.ReadReceipts) *MessageHandler {
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
		relay:         relay,
		receipts:      receipts,
	}
}

// GetMessages returns one page of a conversation's history in creation
// order. Reconnecting clients use this to backfill missed pushes and
// de-duplicate by message id.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	msgs, total, err := h.messages.ListPage(c.Request.Context(), conversationID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	totalPages := (total + limit - 1) / limit

	c.JSON(http.StatusOK, gin.H{
		"messages":     msgs,
		"current_page": page,
		"total_pages":  totalPages,
		"has_more":     page*limit < total,
	})
}

// PostMessage relays a message composed over REST.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
		TempID  string `json:"temp_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.relay.Send(c.Request.Context(), nil, userID, conversationID, req.Content, req.TempID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, ws.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		case errors.Is(err, ws.ErrEmptyContent), errors.Is(err, ws.ErrNoConversation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead bulk-marks the conversation read for the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	if err := h.receipts.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}
