package repository

import (
	"context"
	"fmt"

	"supportchat-backend/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, customer_id, admin_id, status, created_at, updated_at`

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.ChatSession, error) {
	s := &model.ChatSession{}
	err := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1
	`, id).Scan(&s.ID, &s.CustomerID, &s.AdminID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindOpen returns the non-closed session for the pair, or pgx.ErrNoRows.
func (r *SessionRepository) FindOpen(ctx context.Context, customerID, adminID string) (*model.ChatSession, error) {
	s := &model.ChatSession{}
	err := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions
		WHERE customer_id = $1 AND admin_id = $2 AND status <> 'closed'
	`, customerID, adminID).Scan(&s.ID, &s.CustomerID, &s.AdminID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a waiting session and its welcome message in one
// transaction. The partial unique index on open (customer_id, admin_id)
// pairs resolves concurrent creates: the loser gets no row back and
// returns (nil, nil) so the caller can retry as a find.
func (r *SessionRepository) Create(ctx context.Context, customerID, adminID, welcome string) (*model.ChatSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	s := &model.ChatSession{}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_sessions (customer_id, admin_id, status)
		VALUES ($1, $2, 'waiting')
		ON CONFLICT (customer_id, admin_id) WHERE status <> 'closed' DO NOTHING
		RETURNING `+sessionColumns+`
	`, customerID, adminID).Scan(&s.ID, &s.CustomerID, &s.AdminID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			// Lost the race; an open session for the pair already exists.
			return nil, nil
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_messages (session_id, sender_kind, admin_id, content, message_type)
		VALUES ($1, 'admin', $2, $3, 'text')
	`, s.ID, adminID, welcome)
	if err != nil {
		return nil, fmt.Errorf("insert welcome message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close marks the session closed. Closing an already-closed session is a
// no-op: the WHERE clause matches nothing and the current row is returned.
func (r *SessionRepository) Close(ctx context.Context, id string) (*model.ChatSession, error) {
	_, err := r.pool.Exec(ctx, `
		UPDATE chat_sessions SET status = 'closed', updated_at = NOW()
		WHERE id = $1 AND status <> 'closed'
	`, id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// MarkActive promotes a waiting session on the first admin reply.
func (r *SessionRepository) MarkActive(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chat_sessions SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'
	`, id)
	return err
}

// ListOpen returns all non-closed sessions with the triage fields the
// admin console needs: last message, its timestamp, and the unread count
// of customer messages.
func (r *SessionRepository) ListOpen(ctx context.Context) ([]model.SessionSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.customer_id, s.admin_id, s.status, s.created_at, s.updated_at,
		       c.username,
		       COALESCE(m.content, ''), m.created_at,
		       (SELECT COUNT(*) FROM chat_messages cm
		        WHERE cm.session_id = s.id AND cm.sender_kind = 'customer' AND cm.is_read = FALSE)
		FROM chat_sessions s
		JOIN customers c ON c.id = s.customer_id
		LEFT JOIN LATERAL (
			SELECT content, created_at FROM chat_messages
			WHERE session_id = s.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		WHERE s.status <> 'closed'
		ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		var sum model.SessionSummary
		if err := rows.Scan(
			&sum.Session.ID, &sum.Session.CustomerID, &sum.Session.AdminID,
			&sum.Session.Status, &sum.Session.CreatedAt, &sum.Session.UpdatedAt,
			&sum.CustomerName, &sum.LastMessage, &sum.LastMessageAt, &sum.Unread,
		); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
