package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"relay-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence. Membership is
// fixed at creation; the unread counter rows mirror the participant set.
type ConversationRepository interface {
	CreateOrGet(ctx context.Context, userID int, otherID int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error)
	SetLatestMessage(ctx context.Context, conversationID int, messageID int, at time.Time) error
	IncrementUnread(ctx context.Context, conversationID int, exceptUserID int) error
	ResetUnread(ctx context.Context, conversationID int, userID int) error
	UnreadCounts(ctx context.Context, userID int) ([]models.UnreadCount, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGet returns the two-party conversation between the users, creating
// it with zeroed unread counters when it does not exist yet.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, errors.New("cannot start conversation with self")
	}

	var conversationID int
	query := `SELECT cp.conversation_id FROM conversation_participants cp
        JOIN conversation_participants other ON other.conversation_id = cp.conversation_id AND other.user_id=$2
        WHERE cp.user_id=$1
        LIMIT 1`
	err := r.db.GetContext(ctx, &conversationID, query, userID, otherID)
	if err == nil {
		return r.Get(ctx, conversationID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	if err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations DEFAULT VALUES RETURNING id`).Scan(&conversationID); err != nil {
		return models.Conversation{}, err
	}
	for _, id := range []int{userID, otherID} {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
            ON CONFLICT (conversation_id, user_id) DO NOTHING`, conversationID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	return r.Get(ctx, conversationID)
}

// Get fetches a conversation with its participant rows.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, latest_message_id, latest_message_at, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}

	err = r.db.SelectContext(ctx, &conv.Participants, `SELECT conversation_id, user_id, unread_count FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`, conversationID)
	return conv, err
}

// ListForUser returns the user's conversations, newest activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT c.id FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_id = c.id
        WHERE cp.user_id=$1
        ORDER BY c.latest_message_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	result := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, nil
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	return exists, err
}

// SetLatestMessage moves the latest-message pointer forward.
func (r *ConversationRepo) SetLatestMessage(ctx context.Context, conversationID int, messageID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET latest_message_id=$2, latest_message_at=$3 WHERE id=$1`, conversationID, messageID, at)
	return err
}

// IncrementUnread bumps the unread counter of every participant except one.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID int, exceptUserID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET unread_count = unread_count + 1
        WHERE conversation_id=$1 AND user_id<>$2`, conversationID, exceptUserID)
	return err
}

// ResetUnread zeroes the unread counter for one participant.
func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET unread_count = 0
        WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	return err
}

// UnreadCounts returns the user's unread counters across conversations,
// recomputed from the message collection so a counter row left stale by a
// crashed send never surfaces to clients.
func (r *ConversationRepo) UnreadCounts(ctx context.Context, userID int) ([]models.UnreadCount, error) {
	query := `SELECT cp.conversation_id, cp.user_id,
            (SELECT COUNT(*) FROM messages m
                WHERE m.conversation_id = cp.conversation_id
                AND m.sender_id <> cp.user_id
                AND NOT (cp.user_id = ANY(m.read_by))
            )::int AS unread_count
        FROM conversation_participants cp
        WHERE cp.user_id=$1`
	var counts []models.UnreadCount
	err := r.db.SelectContext(ctx, &counts, query, userID)
	return counts, err
}
