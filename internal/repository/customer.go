package repository

import (
	"context"

	"supportchat-backend/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	c := &model.Customer{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, created_at FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Username, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
