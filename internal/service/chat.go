package service

import (
	"context"
	"fmt"
	"strings"

	"supportchat-backend/internal/model"
)

type ChatService struct {
	sessions  SessionStore
	messages  MessageStore
	admins    AdminStore
	customers CustomerStore
	hub       *Hub
}

func NewChatService(sessions SessionStore, messages MessageStore, admins AdminStore, customers CustomerStore, hub *Hub) *ChatService {
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		admins:    admins,
		customers: customers,
		hub:       hub,
	}
}

// StartOrResume returns the open session for the pair, creating it with
// its welcome message when none exists. Concurrent calls converge on one
// session: the store's conditional insert decides the winner and the
// loser retries as a find.
func (s *ChatService) StartOrResume(ctx context.Context, customerID, adminID string) (*model.ChatSession, bool, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		if isNoRows(err) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		if isNoRows(err) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	if !admin.IsActive {
		return nil, false, ErrInactiveAdmin
	}

	sess, err := s.sessions.FindOpen(ctx, customerID, adminID)
	if err == nil {
		return sess, false, nil
	}
	if !isNoRows(err) {
		return nil, false, err
	}

	sess, err = s.sessions.Create(ctx, customerID, adminID, welcomeText(admin.Username))
	if err != nil {
		return nil, false, err
	}
	if sess == nil {
		// Lost the creation race: the other call's session is ours too.
		sess, err = s.sessions.FindOpen(ctx, customerID, adminID)
		if err != nil {
			return nil, false, err
		}
		return sess, false, nil
	}

	s.hub.Broadcast(AdminRoom(adminID), model.EventSessionStarted, sess)
	s.hub.Broadcast(UserRoom(customerID), model.EventSessionStarted, sess)
	return sess, true, nil
}

func welcomeText(adminName string) string {
	return fmt.Sprintf("Hello! You are now connected with %s. How can we help you today?", adminName)
}

// SendMessage appends to the session's log and attempts a real-time
// push. Push failures are invisible here: polling picks the message up.
func (s *ChatService) SendMessage(ctx context.Context, sessionID string, ident *Identity, req *model.SendMessageRequest) (*model.ChatMessage, error) {
	messageType := req.MessageType
	if messageType == "" {
		messageType = model.MessageText
	}
	switch messageType {
	case model.MessageText, model.MessageImage, model.MessageFile:
	default:
		return nil, ErrInvalidMessageType
	}
	if strings.TrimSpace(req.Content) == "" && req.FileRef == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := s.sessionFor(ctx, sessionID, ident)
	if err != nil {
		return nil, err
	}
	if sess.IsClosed() {
		return nil, ErrSessionClosed
	}

	msg := &model.ChatMessage{
		SessionID:   sessionID,
		SenderKind:  ident.SubjectKind,
		Content:     req.Content,
		MessageType: messageType,
	}
	if ident.SubjectKind == model.SenderAdmin {
		adminID := ident.SubjectID
		msg.AdminID = &adminID
	}
	if req.FileRef != "" {
		fileRef := req.FileRef
		msg.FileRef = &fileRef
	}

	stored, err := s.messages.Append(ctx, msg)
	if err != nil {
		if isNoRows(err) {
			// Session closed between the status check and the insert.
			return nil, ErrSessionClosed
		}
		return nil, err
	}

	if ident.SubjectKind == model.SenderAdmin && sess.Status == model.SessionWaiting {
		if err := s.sessions.MarkActive(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	s.hub.Broadcast(SessionRoom(sessionID), model.EventMessage, stored)
	s.hub.Broadcast(AdminRoom(sess.AdminID), model.EventMessage, stored)
	return stored, nil
}

// ListMessages is the authoritative read path for a session party.
// sinceID = 0 returns the full history.
func (s *ChatService) ListMessages(ctx context.Context, sessionID string, ident *Identity, sinceID int64) ([]model.ChatMessage, error) {
	if _, err := s.sessionFor(ctx, sessionID, ident); err != nil {
		return nil, err
	}
	return s.listAfter(ctx, sessionID, sinceID)
}

// History reads the same ordered log without a party check. The admin
// console's pollers fetch through it.
func (s *ChatService) History(ctx context.Context, sessionID string, sinceID int64) ([]model.ChatMessage, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.listAfter(ctx, sessionID, sinceID)
}

func (s *ChatService) listAfter(ctx context.Context, sessionID string, sinceID int64) ([]model.ChatMessage, error) {
	msgs, err := s.messages.List(ctx, sessionID, sinceID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

// MarkRead flips the read flag on everything the actor did not author.
// Idempotent: a second call updates zero rows.
func (s *ChatService) MarkRead(ctx context.Context, sessionID string, ident *Identity) (int64, error) {
	if _, err := s.sessionFor(ctx, sessionID, ident); err != nil {
		return 0, err
	}

	updated, err := s.messages.MarkRead(ctx, sessionID, ident.SubjectKind)
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.hub.Broadcast(SessionRoom(sessionID), model.EventRead, model.ReadPayload{
			SessionID: sessionID,
			Actor:     ident.SubjectKind,
			Updated:   updated,
		})
	}
	return updated, nil
}

// Close ends the session. Closing an already-closed session is a no-op.
func (s *ChatService) Close(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.IsClosed() {
		return sess, nil
	}

	sess, err = s.sessions.Close(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.hub.Broadcast(SessionRoom(sessionID), model.EventSessionClosed, sess)
	s.hub.Broadcast(UserRoom(sess.CustomerID), model.EventSessionClosed, sess)
	return sess, nil
}

// sessionFor loads the session and verifies the caller is a party to
// it. Admins may act on any session; customers only on their own.
func (s *ChatService) sessionFor(ctx context.Context, sessionID string, ident *Identity) (*model.ChatSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ident.SubjectKind == model.SenderCustomer && sess.CustomerID != ident.SubjectID {
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// Session exposes a lookup for room authorization on the WS path.
func (s *ChatService) Session(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}
