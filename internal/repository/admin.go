package repository

import (
	"context"

	"supportchat-backend/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

const adminColumns = `id, username, password_hash, role, is_active, is_online, last_seen_at, created_at`

func (r *AdminRepository) GetByID(ctx context.Context, id string) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.pool.QueryRow(ctx, `
		SELECT `+adminColumns+` FROM admins WHERE id = $1
	`, id).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.IsOnline, &a.LastSeenAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.pool.QueryRow(ctx, `
		SELECT `+adminColumns+` FROM admins WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.IsOnline, &a.LastSeenAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AdminRepository) List(ctx context.Context) ([]model.Admin, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+adminColumns+` FROM admins WHERE is_active = TRUE ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive,
			&a.IsOnline, &a.LastSeenAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// SetOnline updates presence. last_seen_at is stamped on the transition
// to offline only; going online leaves the previous stamp in place.
func (r *AdminRepository) SetOnline(ctx context.Context, id string, online bool) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.pool.QueryRow(ctx, `
		UPDATE admins
		SET is_online = $2,
		    last_seen_at = CASE WHEN $2 THEN last_seen_at ELSE NOW() END
		WHERE id = $1
		RETURNING `+adminColumns+`
	`, id, online).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.IsOnline, &a.LastSeenAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
