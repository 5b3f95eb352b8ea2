package service

import (
	"context"

	"supportchat-backend/internal/model"
)

// Store interfaces are satisfied by the pgx repositories. Missing rows
// surface as pgx.ErrNoRows.

type SessionStore interface {
	GetByID(ctx context.Context, id string) (*model.ChatSession, error)
	FindOpen(ctx context.Context, customerID, adminID string) (*model.ChatSession, error)
	// Create returns (nil, nil) when a concurrent create won the race.
	Create(ctx context.Context, customerID, adminID, welcome string) (*model.ChatSession, error)
	Close(ctx context.Context, id string) (*model.ChatSession, error)
	MarkActive(ctx context.Context, id string) error
	ListOpen(ctx context.Context) ([]model.SessionSummary, error)
}

type MessageStore interface {
	Append(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error)
	List(ctx context.Context, sessionID string, sinceID int64) ([]model.ChatMessage, error)
	UnreadCount(ctx context.Context, sessionID, viewerKind string) (int, error)
	MarkRead(ctx context.Context, sessionID, actorKind string) (int64, error)
}

type AdminStore interface {
	GetByID(ctx context.Context, id string) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	List(ctx context.Context) ([]model.Admin, error)
	SetOnline(ctx context.Context, id string, online bool) (*model.Admin, error)
}

type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
}
