// Package session owns the per-viewer live state: the feed assembler, the
// notification list, the chat list and any open conversations.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/anonto42/socialicon/internal/chat"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/feed"
	"github.com/anonto42/socialicon/internal/notifications"
)

const (
	DefaultIdleTimeout      = 10 * time.Minute
	DefaultHeartbeat        = time.Minute
	DefaultConversationIdle = 2 * time.Minute
)

// ErrHubClosed is returned by Get once the hub has shut down.
var ErrHubClosed = errors.New("session hub closed")

// Presence records whether a viewer is online
type Presence interface {
	SetPresence(ctx context.Context, uid string, online bool) error
}

// Config tunes a Hub. Zero values take defaults.
type Config struct {
	IdleTimeout time.Duration
	Heartbeat   time.Duration
	// ConversationIdle closes a conversation nobody fetched for this long
	// while the session has no live connection.
	ConversationIdle time.Duration
	Feed             feed.Options
}

// Hub creates sessions on a viewer's first request and disposes of them
// after IdleTimeout without activity, or on Close.
type Hub struct {
	store    docstore.Store
	presence Presence
	receipts chat.Receipts
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewHub creates a Hub. presence and receipts may be nil.
func NewHub(store docstore.Store, presence Presence, receipts chat.Receipts, cfg Config) *Hub {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.ConversationIdle <= 0 {
		cfg.ConversationIdle = DefaultConversationIdle
	}
	return &Hub{
		store:    store,
		presence: presence,
		receipts: receipts,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the viewer's session, creating and starting it when needed.
// Every call counts as activity.
func (h *Hub) Get(ctx context.Context, viewerID string) (*Session, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if s, ok := h.sessions[viewerID]; ok {
		h.mu.Unlock()
		s.touch(h.now())
		return s, nil
	}
	h.mu.Unlock()

	s, err := h.open(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.dispose()
		return nil, ErrHubClosed
	}
	if existing, ok := h.sessions[viewerID]; ok {
		// lost a race with a concurrent first request
		h.mu.Unlock()
		s.dispose()
		existing.touch(h.now())
		return existing, nil
	}
	h.sessions[viewerID] = s
	h.mu.Unlock()

	h.setPresence(viewerID, true)
	return s, nil
}

// Lookup returns the viewer's session only if one is already running
func (h *Hub) Lookup(viewerID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[viewerID]
	return s, ok
}

func (h *Hub) open(ctx context.Context, viewerID string) (*Session, error) {
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ViewerID:      viewerID,
		store:         h.store,
		receipts:      h.receipts,
		now:           h.now,
		ctx:           sctx,
		cancel:        cancel,
		conversations: make(map[string]*openConversation),
		attachments:   make(map[*Attachment]struct{}),
		lastSeen:      h.now(),
	}

	var err error
	if s.Notifications, err = notifications.Open(sctx, h.store, viewerID); err != nil {
		cancel()
		return nil, err
	}
	if s.Chats, err = chat.OpenList(sctx, h.store, viewerID); err != nil {
		s.Notifications.Close()
		cancel()
		return nil, err
	}
	if h.receipts != nil {
		s.Typing = chat.NewTyping(h.receipts, viewerID)
	}

	s.Feed = feed.NewAssembler(h.store, viewerID, h.cfg.Feed)
	if err := s.Feed.Start(ctx); err != nil {
		// the assembler serves a cached snapshot and reports itself stale
		log.Printf("session %s: feed start: %v", viewerID, err)
	}
	return s, nil
}

// Len reports the number of live sessions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Run sweeps idle sessions and refreshes presence for active ones until ctx
// is done, then closes the hub.
func (h *Hub) Run(ctx context.Context) error {
	sweep := time.NewTicker(min(h.cfg.IdleTimeout/2, h.cfg.Heartbeat, h.cfg.ConversationIdle/2))
	defer sweep.Stop()
	lastBeat := h.now()
	for {
		select {
		case <-ctx.Done():
			h.Close()
			return nil
		case <-sweep.C:
			now := h.now()
			h.Sweep(now)
			if now.Sub(lastBeat) >= h.cfg.Heartbeat {
				h.heartbeat()
				lastBeat = now
			}
		}
	}
}

// Sweep disposes of every session idle since before now-IdleTimeout that
// has no attached live connection. Surviving sessions without a live
// connection lose conversations unused for ConversationIdle.
func (h *Hub) Sweep(now time.Time) int {
	h.mu.Lock()
	var idle, active []*Session
	for id, s := range h.sessions {
		if s.idle(now, h.cfg.IdleTimeout) {
			idle = append(idle, s)
			delete(h.sessions, id)
			continue
		}
		active = append(active, s)
	}
	h.mu.Unlock()

	for _, s := range active {
		s.closeIdleConversations(now, h.cfg.ConversationIdle)
	}

	for _, s := range idle {
		s.dispose()
		h.setPresence(s.ViewerID, false)
	}
	return len(idle)
}

func (h *Hub) heartbeat() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.setPresence(id, true)
	}
}

func (h *Hub) setPresence(viewerID string, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.presence.SetPresence(ctx, viewerID, online); err != nil {
		log.Printf("session %s: presence: %v", viewerID, err)
	}
}

// Close disposes of every session and rejects further Get calls.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.dispose()
			h.setPresence(s.ViewerID, false)
		}(s)
	}
	wg.Wait()
}
