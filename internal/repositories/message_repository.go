package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"relay-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, content, status, delivered_to, read_by, created_at`

// MessageRepository defines interactions for relay messages.
type MessageRepository interface {
	Create(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	MarkDelivered(ctx context.Context, messageID int, userIDs []int) (models.Message, error)
	MarkRead(ctx context.Context, conversationID int, userID int) (int64, error)
	ListPage(ctx context.Context, conversationID int, page int, limit int) ([]models.Message, int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a new message with status sent and empty receipt sets.
func (r *MessageRepo) Create(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content, status)
        VALUES ($1, $2, $3, $4) RETURNING `+messageColumns, conversationID, senderID, content, models.StatusSent).
		StructScan(&msg)
	return msg, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkDelivered unions the reached participant ids into delivered_to and
// advances status to delivered the first time the set becomes non-empty.
// Applying the same id twice is a no-op; the status never moves backwards.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int, userIDs []int) (models.Message, error) {
	msg, err := r.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	seen := make(map[int64]struct{}, len(msg.DeliveredTo))
	for _, id := range msg.DeliveredTo {
		seen[id] = struct{}{}
	}
	delivered := msg.DeliveredTo
	for _, id := range userIDs {
		if _, ok := seen[int64(id)]; ok {
			continue
		}
		seen[int64(id)] = struct{}{}
		delivered = append(delivered, int64(id))
	}

	status := msg.Status
	if len(delivered) > 0 {
		status = models.AdvanceStatus(status, models.StatusDelivered)
	}

	var updated models.Message
	err = r.db.QueryRowxContext(ctx, `UPDATE messages SET delivered_to=$2, status=$3 WHERE id=$1 RETURNING `+messageColumns,
		messageID, delivered, status).StructScan(&updated)
	return updated, err
}

// MarkRead bulk-adds the reader to read_by on every message in the
// conversation authored by someone else, advancing status to read. Re-running
// for the same reader matches nothing and is a no-op. Returns the number of
// messages newly marked.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID int, userID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages
        SET read_by = array_append(read_by, $2),
            status = CASE WHEN status <> $3 THEN $4 ELSE status END
        WHERE conversation_id=$1 AND sender_id<>$2 AND NOT ($2 = ANY(read_by))`,
		conversationID, userID, models.StatusFailed, models.StatusRead)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListPage returns one page of the conversation's messages in creation order
// together with the total message count. This is the backlog a reconnecting
// client fetches; clients de-duplicate against live pushes by message id.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID int, page int, limit int) ([]models.Message, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`,
		conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE conversation_id=$1`, conversationID); err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}
