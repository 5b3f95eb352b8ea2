// Package reconcile is the authoritative delivery path for chat
// messages. Real-time pushes are best-effort and may silently fail; a
// Cache fed by periodic fetches converges to full message visibility
// regardless, within one polling interval.
package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"supportchat-backend/internal/model"
)

// FetchFunc pulls a session's messages after sinceID in authoritative
// (created_at, id) order.
type FetchFunc func(ctx context.Context, sessionID string, sinceID int64) ([]model.ChatMessage, error)

// Cache is an id-deduplicated local copy of one session's message log.
// Both delivery paths write into it: pushed events via Add, polled
// snapshots via Apply. Entries are never removed or reordered.
type Cache struct {
	mu   sync.Mutex
	seen map[int64]bool
	msgs []model.ChatMessage
}

func NewCache() *Cache {
	return &Cache{seen: make(map[int64]bool)}
}

// Apply merges a fetched snapshot. Messages already cached are skipped;
// missing ones are inserted at the position the authoritative order
// dictates. Applying the same snapshot twice changes nothing.
func (c *Cache) Apply(snapshot []model.ChatMessage) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for i := range snapshot {
		if c.insert(&snapshot[i]) {
			added++
		}
	}
	return added
}

// Add merges a single pushed message. Same dedup rules as Apply.
func (c *Cache) Add(msg *model.ChatMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(msg)
}

// insert requires c.mu held.
func (c *Cache) insert(msg *model.ChatMessage) bool {
	if c.seen[msg.ID] {
		return false
	}
	c.seen[msg.ID] = true

	// Cached entries are already in authoritative order, so walking back
	// from the tail finds the insertion point without reordering them.
	pos := len(c.msgs)
	for pos > 0 && msg.Before(&c.msgs[pos-1]) {
		pos--
	}
	c.msgs = append(c.msgs, model.ChatMessage{})
	copy(c.msgs[pos+1:], c.msgs[pos:])
	c.msgs[pos] = *msg

	return true
}

// Messages returns a copy of the cached log in order.
func (c *Cache) Messages() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// LastID returns the highest cached message id, for incremental fetch.
func (c *Cache) LastID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var max int64
	for id := range c.seen {
		if id > max {
			max = id
		}
	}
	return max
}

// Serial message ids are assigned before their transaction commits, so
// a slower append can land below the incremental watermark after the
// poller has already moved past it. A periodic full fetch re-covers the
// gap; the cache dedups, so the extra rows cost nothing.
const fullSyncEvery = 15

// Poller drives a Cache from the fetch path on a fixed interval while a
// session view is open. Fetch errors are logged and retried on the next
// tick; there is no backoff because the interval already bounds load.
type Poller struct {
	cache     *Cache
	fetch     FetchFunc
	sessionID string
	interval  time.Duration
	polls     int
}

func NewPoller(cache *Cache, fetch FetchFunc, sessionID string, interval time.Duration) *Poller {
	return &Poller{cache: cache, fetch: fetch, sessionID: sessionID, interval: interval}
}

// Run polls until ctx is cancelled. An immediate first fetch loads the
// history before the ticker takes over.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	sinceID := p.cache.LastID()
	if p.polls%fullSyncEvery == 0 {
		sinceID = 0
	}
	p.polls++

	msgs, err := p.fetch(ctx, p.sessionID, sinceID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("reconcile: fetch for session %s failed: %v", p.sessionID, err)
		}
		return
	}
	p.cache.Apply(msgs)
}
