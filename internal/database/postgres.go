package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 10

// NewPool connects with sizing tuned for the chat workload: most of the
// load is 2s message pollers and the console refresher, all short reads,
// so a modest ceiling with a warm floor beats a large cold pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 16
	cfg.MinConns = 4
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	// The database container often comes up after the server does.
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				log.Printf("Connected to Postgres (attempt %d)", attempt)
				return pool, nil
			}
			pool.Close()
		}
		log.Printf("Postgres not ready (attempt %d/%d): %v", attempt, connectAttempts, err)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", connectAttempts, err)
}
