// Package chat keeps a viewer's live chat list and open conversations.
package chat

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/reconciler"
)

// ConversationWindow is how many messages an open conversation keeps live.
const ConversationWindow = 100

// TypingTimeout clears a typing flag that was not refreshed.
const TypingTimeout = 3 * time.Second

// Receipts updates message status on behalf of the viewer
type Receipts interface {
	MarkRead(ctx context.Context, viewerID, chatID string) (int, error)
	SetTyping(ctx context.Context, viewerID, chatID string, typing bool) error
}

// List is the viewer's live chat list, most recent activity first.
type List struct {
	list *reconciler.List[models.Chat]
}

// OpenList subscribes to every chat viewerID takes part in
func OpenList(ctx context.Context, store docstore.Store, viewerID string) (*List, error) {
	q := docstore.NewQuery(models.CollectionChats).
		Filter("participants", docstore.OpArrayContains, viewerID)
	list, err := reconciler.Open(ctx, store, q,
		func(c models.Chat) string { return c.ID },
		docstore.DecodeAs[models.Chat], nil)
	if err != nil {
		return nil, err
	}
	return &List{list: list}, nil
}

// Chats returns the chats ordered by lastMessageAt, newest first
func (l *List) Chats() []models.Chat {
	chats := l.list.Items()
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})
	return chats
}

// Unread sums the viewer's unread counters across chats
func (l *List) Unread(viewerID string) int64 {
	var n int64
	for _, c := range l.list.Items() {
		n += c.UnreadCount[viewerID]
	}
	return n
}

func (l *List) Updates() <-chan struct{} { return l.list.Updates() }

func (l *List) Synced() <-chan struct{} { return l.list.Synced() }

func (l *List) Stale() bool { return l.list.Stale() }

func (l *List) Close() { l.list.Close() }

// Conversation is the live message list of one open chat. Every snapshot
// carrying unread partner messages marks them read.
type Conversation struct {
	ChatID string
	list   *reconciler.List[models.Message]
}

// OpenConversation subscribes to the newest messages of chatID. receipts may
// be nil, in which case messages are never marked read.
func OpenConversation(ctx context.Context, store docstore.Store, receipts Receipts, viewerID, chatID string) (*Conversation, error) {
	q := docstore.NewQuery(models.CollectionMessages).
		Filter("chatId", docstore.OpEqual, chatID).
		Sorted("createdAt", true).
		Window(ConversationWindow)

	var after func([]reconciler.Event[models.Message])
	if receipts != nil {
		after = func(events []reconciler.Event[models.Message]) {
			if !hasUnread(events, viewerID) {
				return
			}
			if _, err := receipts.MarkRead(ctx, viewerID, chatID); err != nil && ctx.Err() == nil {
				log.Printf("chat %s: mark read: %v", chatID, err)
			}
		}
	}
	list, err := reconciler.Open(ctx, store, q,
		func(m models.Message) string { return m.ID },
		docstore.DecodeAs[models.Message], after)
	if err != nil {
		return nil, err
	}
	return &Conversation{ChatID: chatID, list: list}, nil
}

func hasUnread(events []reconciler.Event[models.Message], viewerID string) bool {
	for _, ev := range events {
		if ev.Type == docstore.Removed {
			continue
		}
		if ev.Item.SenderID != viewerID && ev.Item.Status != models.MessageRead {
			return true
		}
	}
	return false
}

// Messages returns the conversation oldest first
func (c *Conversation) Messages() []models.Message {
	msgs := c.list.Items()
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func (c *Conversation) Updates() <-chan struct{} { return c.list.Updates() }

func (c *Conversation) Synced() <-chan struct{} { return c.list.Synced() }

func (c *Conversation) Stale() bool { return c.list.Stale() }

func (c *Conversation) Close() { c.list.Close() }

// Typing sets a viewer's typing flags and clears each one TypingTimeout
// after its last refresh.
type Typing struct {
	receipts Receipts
	viewerID string
	timeout  time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	gen    map[string]uint64
}

// NewTyping creates a Typing for viewerID
func NewTyping(receipts Receipts, viewerID string) *Typing {
	return &Typing{
		receipts: receipts,
		viewerID: viewerID,
		timeout:  TypingTimeout,
		timers:   make(map[string]*time.Timer),
		gen:      make(map[string]uint64),
	}
}

// Set records the typing flag for chatID. A true flag is cleared
// automatically unless Set is called again within the timeout.
func (t *Typing) Set(ctx context.Context, chatID string, typing bool) error {
	t.mu.Lock()
	if timer, ok := t.timers[chatID]; ok {
		timer.Stop()
		delete(t.timers, chatID)
	}
	t.gen[chatID]++
	if typing {
		gen := t.gen[chatID]
		t.timers[chatID] = time.AfterFunc(t.timeout, func() { t.expire(chatID, gen) })
	}
	t.mu.Unlock()
	return t.receipts.SetTyping(ctx, t.viewerID, chatID, typing)
}

func (t *Typing) expire(chatID string, gen uint64) {
	t.mu.Lock()
	if t.gen[chatID] != gen {
		t.mu.Unlock()
		return
	}
	delete(t.timers, chatID)
	t.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.receipts.SetTyping(ctx, t.viewerID, chatID, false); err != nil {
		log.Printf("chat %s: clear typing: %v", chatID, err)
	}
}

// Stop cancels pending clears without touching the stored flags
func (t *Typing) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
		t.gen[id]++
	}
}
