package repository

import (
	"context"

	"supportchat-backend/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append persists a message with a server-assigned id and timestamp. The
// insert selects from chat_sessions so a closed (or missing) session
// yields no row; callers see pgx.ErrNoRows and decide which it was.
func (r *MessageRepository) Append(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := *msg
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (session_id, sender_kind, admin_id, content, message_type, file_ref)
		SELECT s.id, $2, $3, $4, $5, $6
		FROM chat_sessions s
		WHERE s.id = $1 AND s.status <> 'closed'
		RETURNING id, is_read, created_at
	`, msg.SessionID, msg.SenderKind, msg.AdminID, msg.Content, msg.MessageType, msg.FileRef).
		Scan(&out.ID, &out.IsRead, &out.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1
	`, msg.SessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the session's messages ascending by (created_at, id).
// sinceID > 0 restricts to later ids for incremental reconciliation.
func (r *MessageRepository) List(ctx context.Context, sessionID string, sinceID int64) ([]model.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, sender_kind, admin_id, content, message_type, file_ref, is_read, created_at
		FROM chat_messages
		WHERE session_id = $1 AND id > $2
		ORDER BY created_at ASC, id ASC
	`, sessionID, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderKind, &m.AdminID, &m.Content,
			&m.MessageType, &m.FileRef, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UnreadCount counts unread messages authored by the other party, from
// the given viewer's perspective.
func (r *MessageRepository) UnreadCount(ctx context.Context, sessionID, viewerKind string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE session_id = $1 AND sender_kind <> $2 AND is_read = FALSE
	`, sessionID, viewerKind).Scan(&count)
	return count, err
}

// MarkRead flips is_read on every message not authored by the actor.
// is_read only ever goes false -> true, so repeat calls affect zero rows.
func (r *MessageRepository) MarkRead(ctx context.Context, sessionID, actorKind string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_messages SET is_read = TRUE
		WHERE session_id = $1 AND sender_kind <> $2 AND is_read = FALSE
	`, sessionID, actorKind)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
