package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInactiveAdmin      = errors.New("admin account is disabled")
	ErrSessionClosed      = errors.New("session is closed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyMessage       = errors.New("message content is required")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrFileTooLarge       = errors.New("file exceeds the 10MB limit")
	ErrFileType           = errors.New("file type is not allowed")
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
