package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"supportchat-backend/internal/model"
)

type PresenceService struct {
	admins   AdminStore
	sessions SessionStore
	hub      *Hub
}

func NewPresenceService(admins AdminStore, sessions SessionStore, hub *Hub) *PresenceService {
	return &PresenceService{admins: admins, sessions: sessions, hub: hub}
}

// SetOnline updates the admin's presence and pushes the change to the
// admin's own room and to every open session room the admin is part of,
// so engaged customers see it. The store stamps last_seen_at on the
// offline transition.
func (s *PresenceService) SetOnline(ctx context.Context, adminID string, online bool) (*model.Admin, error) {
	admin, err := s.admins.SetOnline(ctx, adminID, online)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	payload := model.PresencePayload{AdminID: admin.ID, IsOnline: admin.IsOnline}
	if admin.LastSeenAt != nil {
		payload.LastSeenAt = admin.LastSeenAt.UTC().Format(time.RFC3339)
	}
	s.hub.Broadcast(AdminRoom(admin.ID), model.EventPresence, payload)

	summaries, err := s.sessions.ListOpen(ctx)
	if err != nil {
		// Presence is already persisted; the push is best-effort.
		log.Printf("presence: list open sessions failed: %v", err)
		return admin, nil
	}
	for _, sum := range summaries {
		if sum.Session.AdminID == admin.ID {
			s.hub.Broadcast(SessionRoom(sum.Session.ID), model.EventPresence, payload)
		}
	}

	return admin, nil
}

func (s *PresenceService) Status(ctx context.Context, adminID string) (*model.Admin, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return admin, nil
}

// List returns all active admins with their presence, last_seen rendered
// for offline ones.
func (s *PresenceService) List(ctx context.Context) ([]model.AdminPresence, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]model.AdminPresence, 0, len(admins))
	for _, a := range admins {
		p := model.AdminPresence{
			ID:         a.ID,
			Username:   a.Username,
			Role:       a.Role,
			IsOnline:   a.IsOnline,
			LastSeenAt: a.LastSeenAt,
		}
		if !a.IsOnline && a.LastSeenAt != nil {
			p.LastSeen = FormatLastSeen(*a.LastSeenAt, now)
		}
		out = append(out, p)
	}
	return out, nil
}

// FormatLastSeen buckets an offline duration: minutes under an hour,
// hours under a day, days beyond that. Integer floor division.
func FormatLastSeen(lastSeen, now time.Time) string {
	mins := int(now.Sub(lastSeen).Minutes())
	if mins < 0 {
		mins = 0
	}
	switch {
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case mins < 1440:
		return fmt.Sprintf("%dh ago", mins/60)
	default:
		return fmt.Sprintf("%dd ago", mins/1440)
	}
}
