package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"supportchat-backend/internal/model"
	"supportchat-backend/internal/reconcile"
)

const (
	previewMaxWords = 20
	previewMaxChars = 30
)

// Console aggregates open sessions into the waiting/active triage queues
// agents work from. A background refresh re-fetches the list; opened
// conversation views keep their own message caches and are not touched
// by the refresh.
type Console struct {
	sessions     SessionStore
	chat         *ChatService
	pollInterval time.Duration

	mu     sync.RWMutex
	loaded bool
	rows   map[string]model.SessionSummary
	views  map[string]*conversationView
}

type conversationView struct {
	cache  *reconcile.Cache
	cancel context.CancelFunc
}

func NewConsole(sessions SessionStore, chat *ChatService, pollInterval time.Duration) *Console {
	return &Console{
		sessions:     sessions,
		chat:         chat,
		pollInterval: pollInterval,
		rows:         make(map[string]model.SessionSummary),
		views:        make(map[string]*conversationView),
	}
}

// Refresh replaces the triage rows with the store's current view.
// Unread counts come straight from the store, so they only drop when an
// admin explicitly marks a session read.
func (c *Console) Refresh(ctx context.Context) error {
	summaries, err := c.sessions.ListOpen(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]model.SessionSummary, len(summaries))
	for _, sum := range summaries {
		sum.Preview = Preview(sum.LastMessage)
		next[sum.Session.ID] = sum
	}

	c.mu.Lock()
	c.rows = next
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Loaded reports whether at least one refresh has completed, so callers
// can tell an empty store apart from a console that has not run yet.
func (c *Console) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Run refreshes on the given interval until ctx is cancelled.
func (c *Console) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Printf("console: refresh failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Queues splits the current rows into waiting (no admin reply yet) and
// active, most recently updated first.
func (c *Console) Queues() (waiting, active []model.SessionSummary) {
	c.mu.RLock()
	for _, sum := range c.rows {
		switch sum.Session.Status {
		case model.SessionWaiting:
			waiting = append(waiting, sum)
		case model.SessionActive:
			active = append(active, sum)
		}
	}
	c.mu.RUnlock()

	byUpdated := func(rows []model.SessionSummary) func(i, j int) bool {
		return func(i, j int) bool {
			return rows[i].Session.UpdatedAt.After(rows[j].Session.UpdatedAt)
		}
	}
	sort.Slice(waiting, byUpdated(waiting))
	sort.Slice(active, byUpdated(active))
	return waiting, active
}

// OpenView starts polling a conversation into a deduplicated cache.
// Opening an already-open view returns the existing cache.
func (c *Console) OpenView(ctx context.Context, sessionID string) (*reconcile.Cache, error) {
	c.mu.Lock()
	if view, ok := c.views[sessionID]; ok {
		c.mu.Unlock()
		return view.cache, nil
	}
	c.mu.Unlock()

	if _, err := c.chat.Session(ctx, sessionID); err != nil {
		return nil, err
	}

	cache := reconcile.NewCache()
	pollCtx, cancel := context.WithCancel(ctx)
	poller := reconcile.NewPoller(cache, c.chat.History, sessionID, c.pollInterval)
	go poller.Run(pollCtx)

	c.mu.Lock()
	c.views[sessionID] = &conversationView{cache: cache, cancel: cancel}
	c.mu.Unlock()
	return cache, nil
}

// CloseView cancels the session's polling loop and drops its cache.
func (c *Console) CloseView(sessionID string) {
	c.mu.Lock()
	view, ok := c.views[sessionID]
	if ok {
		delete(c.views, sessionID)
	}
	c.mu.Unlock()

	if ok {
		view.cancel()
	}
}

// Preview truncates a message for the triage list: the shorter of 20
// words or 30 characters, with an ellipsis marker when cut.
func Preview(content string) string {
	words := strings.Fields(content)
	truncated := false

	if len(words) > previewMaxWords {
		words = words[:previewMaxWords]
		truncated = true
	}
	out := strings.Join(words, " ")

	runes := []rune(out)
	if len(runes) > previewMaxChars {
		out = string(runes[:previewMaxChars])
		truncated = true
	}

	if truncated {
		out = strings.TrimRight(out, " ") + "..."
	}
	return out
}
