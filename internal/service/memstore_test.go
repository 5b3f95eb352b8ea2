package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supportchat-backend/internal/model"

	"github.com/jackc/pgx/v5"
)

// memStore implements the store interfaces in memory, mirroring the
// database's semantics: missing rows are pgx.ErrNoRows and the open-pair
// uniqueness check happens inside the store's lock, the way the partial
// unique index resolves it inside the database.
type memStore struct {
	mu        sync.Mutex
	admins    map[string]model.Admin
	customers map[string]model.Customer
	sessions  map[string]model.ChatSession
	msgs      []model.ChatMessage
	nextSess  int
	nextMsg   int64
}

func newMemStore() *memStore {
	return &memStore{
		admins:    make(map[string]model.Admin),
		customers: make(map[string]model.Customer),
		sessions:  make(map[string]model.ChatSession),
	}
}

func (s *memStore) addAdmin(id, username string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[id] = model.Admin{ID: id, Username: username, Role: "agent", IsActive: active, CreatedAt: time.Now()}
}

func (s *memStore) addCustomer(id, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[id] = model.Customer{ID: id, Username: username, CreatedAt: time.Now()}
}

// --- AdminStore ---

func (s *memStore) GetByID(_ context.Context, id string) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (s *memStore) GetByUsername(_ context.Context, username string) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) List(_ context.Context) ([]model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Admin
	for _, a := range s.admins {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) SetOnline(_ context.Context, id string, online bool) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	a.IsOnline = online
	if !online {
		now := time.Now()
		a.LastSeenAt = &now
	}
	s.admins[id] = a
	return &a, nil
}

// customerStore wraps memStore so CustomerStore's GetByID does not clash
// with AdminStore's.
type customerStore struct{ *memStore }

func (s customerStore) GetByID(_ context.Context, id string) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

// sessionStore wraps memStore as a SessionStore.
type sessionStore struct{ *memStore }

func (s sessionStore) GetByID(_ context.Context, id string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &sess, nil
}

func (s sessionStore) FindOpen(_ context.Context, customerID, adminID string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findOpenLocked(customerID, adminID)
	if sess == nil {
		return nil, pgx.ErrNoRows
	}
	return sess, nil
}

func (s *memStore) findOpenLocked(customerID, adminID string) *model.ChatSession {
	for _, sess := range s.sessions {
		if sess.CustomerID == customerID && sess.AdminID == adminID && sess.Status != model.SessionClosed {
			out := sess
			return &out
		}
	}
	return nil
}

func (s sessionStore) Create(_ context.Context, customerID, adminID, welcome string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Uniqueness decided under the lock, like the partial index.
	if s.findOpenLocked(customerID, adminID) != nil {
		return nil, nil
	}

	s.nextSess++
	now := time.Now()
	sess := model.ChatSession{
		ID:         fmt.Sprintf("sess-%d", s.nextSess),
		CustomerID: customerID,
		AdminID:    adminID,
		Status:     model.SessionWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.sessions[sess.ID] = sess

	s.nextMsg++
	s.msgs = append(s.msgs, model.ChatMessage{
		ID:          s.nextMsg,
		SessionID:   sess.ID,
		SenderKind:  model.SenderAdmin,
		AdminID:     &adminID,
		Content:     welcome,
		MessageType: model.MessageText,
		CreatedAt:   now,
	})
	return &sess, nil
}

func (s sessionStore) Close(_ context.Context, id string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if sess.Status != model.SessionClosed {
		sess.Status = model.SessionClosed
		sess.UpdatedAt = time.Now()
		s.sessions[id] = sess
	}
	return &sess, nil
}

func (s sessionStore) MarkActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if sess.Status == model.SessionWaiting {
		sess.Status = model.SessionActive
		sess.UpdatedAt = time.Now()
		s.sessions[id] = sess
	}
	return nil
}

func (s sessionStore) ListOpen(_ context.Context) ([]model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SessionSummary
	for _, sess := range s.sessions {
		if sess.Status == model.SessionClosed {
			continue
		}
		sum := model.SessionSummary{Session: sess}
		if c, ok := s.customers[sess.CustomerID]; ok {
			sum.CustomerName = c.Username
		}
		for i := range s.msgs {
			m := s.msgs[i]
			if m.SessionID != sess.ID {
				continue
			}
			if sum.LastMessageAt == nil || !m.CreatedAt.Before(*sum.LastMessageAt) {
				sum.LastMessage = m.Content
				at := m.CreatedAt
				sum.LastMessageAt = &at
			}
			if m.SenderKind == model.SenderCustomer && !m.IsRead {
				sum.Unread++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// messageStore wraps memStore as a MessageStore.
type messageStore struct{ *memStore }

func (s messageStore) Append(_ context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[msg.SessionID]
	if !ok || sess.Status == model.SessionClosed {
		return nil, pgx.ErrNoRows
	}

	s.nextMsg++
	out := *msg
	out.ID = s.nextMsg
	out.CreatedAt = time.Now()
	s.msgs = append(s.msgs, out)

	sess.UpdatedAt = out.CreatedAt
	s.sessions[msg.SessionID] = sess
	return &out, nil
}

func (s messageStore) List(_ context.Context, sessionID string, sinceID int64) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ChatMessage
	for _, m := range s.msgs {
		if m.SessionID == sessionID && m.ID > sinceID {
			out = append(out, m)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Before(&out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s messageStore) UnreadCount(_ context.Context, sessionID, viewerKind string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.msgs {
		if m.SessionID == sessionID && m.SenderKind != viewerKind && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (s messageStore) MarkRead(_ context.Context, sessionID, actorKind string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.SessionID == sessionID && m.SenderKind != actorKind && !m.IsRead {
			m.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func newTestChatService(store *memStore) (*ChatService, *Hub) {
	hub := NewHub()
	svc := NewChatService(sessionStore{store}, messageStore{store}, store, customerStore{store}, hub)
	return svc, hub
}
