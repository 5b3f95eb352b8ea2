package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"supportchat-backend/internal/model"
)

func customerIdent(id string) *Identity {
	return &Identity{SubjectID: id, SubjectKind: model.SenderCustomer}
}

func adminIdent(id string) *Identity {
	return &Identity{SubjectID: id, SubjectKind: model.SenderAdmin}
}

func seedStore() *memStore {
	store := newMemStore()
	store.addAdmin("adm-1", "rina", true)
	store.addAdmin("adm-2", "disabled", false)
	store.addCustomer("cus-1", "budi")
	return store
}

func TestStartOrResumeCreatesSessionWithWelcome(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	sess, created, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	if !created {
		t.Error("expected created=true on first contact")
	}
	if sess.Status != model.SessionWaiting {
		t.Errorf("status = %q, want %q", sess.Status, model.SessionWaiting)
	}

	msgs, err := svc.ListMessages(ctx, sess.ID, customerIdent("cus-1"), 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly one welcome message", len(msgs))
	}
	if msgs[0].SenderKind != model.SenderAdmin {
		t.Errorf("welcome sender = %q, want admin", msgs[0].SenderKind)
	}
}

func TestStartOrResumeReturnsExistingSession(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	first, _, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if err != nil {
		t.Fatalf("first StartOrResume: %v", err)
	}
	second, created, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if err != nil {
		t.Fatalf("second StartOrResume: %v", err)
	}
	if created {
		t.Error("expected created=false on resume")
	}
	if second.ID != first.ID {
		t.Errorf("resumed session %q, want %q", second.ID, first.ID)
	}
}

func TestStartOrResumeConcurrentConvergesToOneSession(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	ids := make([]string, callers)
	createdCount := make([]bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, created, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
			if err != nil {
				t.Errorf("StartOrResume: %v", err)
				return
			}
			ids[i] = sess.ID
			createdCount[i] = created
		}(i)
	}
	wg.Wait()

	creations := 0
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("diverged: session %q vs %q", ids[i], ids[0])
		}
	}
	for _, c := range createdCount {
		if c {
			creations++
		}
	}
	if creations != 1 {
		t.Errorf("created reported %d times, want exactly 1", creations)
	}
}

func TestStartOrResumeErrors(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	tests := []struct {
		name       string
		customerID string
		adminID    string
		wantErr    error
	}{
		{"unknown customer", "cus-nope", "adm-1", ErrNotFound},
		{"unknown admin", "cus-1", "adm-nope", ErrNotFound},
		{"inactive admin", "cus-1", "adm-2", ErrInactiveAdmin},
	}

	for _, tt := range tests {
		_, _, err := svc.StartOrResume(ctx, tt.customerID, tt.adminID)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSendMessageOrderingAndActivation(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	sess, _, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}

	if _, err := svc.SendMessage(ctx, sess.ID, customerIdent("cus-1"), &model.SendMessageRequest{Content: "Halo"}); err != nil {
		t.Fatalf("customer send: %v", err)
	}
	if _, err := svc.SendMessage(ctx, sess.ID, adminIdent("adm-1"), &model.SendMessageRequest{Content: "Hi"}); err != nil {
		t.Fatalf("admin send: %v", err)
	}

	msgs, err := svc.ListMessages(ctx, sess.ID, adminIdent("adm-1"), 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (welcome, Halo, Hi)", len(msgs))
	}
	if msgs[1].Content != "Halo" || msgs[2].Content != "Hi" {
		t.Errorf("order = [%q, %q, %q], want welcome then Halo then Hi", msgs[0].Content, msgs[1].Content, msgs[2].Content)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Before(&msgs[i-1]) {
			t.Errorf("messages %d and %d out of (created_at, id) order", i-1, i)
		}
	}

	// First admin reply promotes waiting -> active.
	sess, err = svc.Session(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Status != model.SessionActive {
		t.Errorf("status after admin reply = %q, want %q", sess.Status, model.SessionActive)
	}
}

func TestSendMessageValidation(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	sess, _, _ := svc.StartOrResume(ctx, "cus-1", "adm-1")

	if _, err := svc.SendMessage(ctx, sess.ID, customerIdent("cus-1"), &model.SendMessageRequest{Content: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank content: err = %v, want %v", err, ErrEmptyMessage)
	}
	if _, err := svc.SendMessage(ctx, sess.ID, customerIdent("cus-1"), &model.SendMessageRequest{Content: "x", MessageType: "video"}); !errors.Is(err, ErrInvalidMessageType) {
		t.Errorf("bad type: err = %v, want %v", err, ErrInvalidMessageType)
	}
	if _, err := svc.SendMessage(ctx, "sess-nope", customerIdent("cus-1"), &model.SendMessageRequest{Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session: err = %v, want %v", err, ErrNotFound)
	}
}

func TestNonPartyCustomerIsRejected(t *testing.T) {
	store := seedStore()
	store.addCustomer("cus-2", "sari")
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	sess, _, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	if _, err := svc.SendMessage(ctx, sess.ID, customerIdent("cus-1"), &model.SendMessageRequest{Content: "Halo"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// A customer who is not a party to the session can neither write to
	// it, read it, nor flip its read markers.
	outsider := customerIdent("cus-2")
	if _, err := svc.SendMessage(ctx, sess.ID, outsider, &model.SendMessageRequest{Content: "let me in"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("outsider send: err = %v, want %v", err, ErrUnauthorized)
	}
	if _, err := svc.ListMessages(ctx, sess.ID, outsider, 0); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("outsider list: err = %v, want %v", err, ErrUnauthorized)
	}
	if _, err := svc.MarkRead(ctx, sess.ID, outsider); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("outsider mark read: err = %v, want %v", err, ErrUnauthorized)
	}

	// The log is untouched and still readable by the parties.
	msgs, err := svc.ListMessages(ctx, sess.ID, adminIdent("adm-1"), 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("log has %d messages, want 2 (welcome, Halo)", len(msgs))
	}
}

func TestClosedSessionRejectsWrites(t *testing.T) {
	store := seedStore()
	svc, _ := newTestChatService(store)
	ctx := context.Background()

	sess, _, _ := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if _, err := svc.Close(ctx, sess.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := svc.SendMessage(ctx, sess.ID, customerIdent("cus-1"), &model.SendMessageRequest{Content: "hello?"}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("send to closed: err = %v, want %v", err, ErrSessionClosed)
	}

	// Closing again is a no-op, not an error.
	again, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if again.Status != model.SessionClosed {
		t.Errorf("status = %q, want closed", again.Status)
	}

	// A new session is created for further contact.
	next, created, err := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if err != nil {
		t.Fatalf("StartOrResume after close: %v", err)
	}
	if !created || next.ID == sess.ID {
		t.Errorf("got created=%v id=%q, want a fresh session", created, next.ID)
	}
}

func TestUnreadAndMarkReadIdempotent(t *testing.T) {
	store := seedStore()
	svc, hub := newTestChatService(store)
	presence := NewPresenceService(store, sessionStore{store}, hub)
	msgStore := messageStore{store}
	ctx := context.Background()

	// Admin goes offline, customer writes anyway.
	admin, err := presence.SetOnline(ctx, "adm-1", false)
	if err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if admin.IsOnline {
		t.Error("admin should be offline")
	}
	if admin.LastSeenAt == nil {
		t.Error("offline transition should stamp last_seen_at")
	}

	sess, _, _ := svc.StartOrResume(ctx, "cus-1", "adm-1")
	if _, err := svc.SendMessage(ctx, sess.ID, customerIdent("cus-1"), &model.SendMessageRequest{Content: "anyone there?"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	count, err := msgStore.UnreadCount(ctx, sess.ID, model.SenderAdmin)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("unread = %d, want 1 (welcome message is admin-authored)", count)
	}

	updated, err := svc.MarkRead(ctx, sess.ID, adminIdent("adm-1"))
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated != 1 {
		t.Errorf("first MarkRead updated %d rows, want 1", updated)
	}

	updated, err = svc.MarkRead(ctx, sess.ID, adminIdent("adm-1"))
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if updated != 0 {
		t.Errorf("second MarkRead updated %d rows, want 0", updated)
	}

	count, _ = msgStore.UnreadCount(ctx, sess.ID, model.SenderAdmin)
	if count != 0 {
		t.Errorf("unread after MarkRead = %d, want 0", count)
	}
}
