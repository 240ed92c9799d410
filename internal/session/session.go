package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/socialicon/internal/chat"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/feed"
	"github.com/anonto42/socialicon/internal/notifications"
)

// Session is one viewer's live client context.
type Session struct {
	ViewerID      string
	Feed          *feed.Assembler
	Notifications *notifications.View
	Chats         *chat.List
	Typing        *chat.Typing

	store    docstore.Store
	receipts chat.Receipts
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc

	mu            sync.Mutex
	conversations map[string]*openConversation
	attachments   map[*Attachment]struct{}
	lastSeen      time.Time
	disposed      bool
}

// openConversation is a conversation together with the goroutine that
// relays its updates to the attachments.
type openConversation struct {
	*chat.Conversation
	stop     chan struct{}
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
	s.mu.Unlock()
}

func (s *Session) idle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attachments) == 0 && now.Sub(s.lastSeen) >= timeout
}

// Attachment is one live connection to a session. It keeps the session
// alive and collects the conversations that changed since it last looked.
type Attachment struct {
	s      *Session
	signal chan struct{}
	dirty  map[string]bool
	detach sync.Once
}

// Attach registers a live connection. Every conversation already open is
// reported as changed so the connection can send its first frame.
func (s *Session) Attach() *Attachment {
	a := &Attachment{s: s, signal: make(chan struct{}, 1), dirty: make(map[string]bool)}
	s.mu.Lock()
	s.attachments[a] = struct{}{}
	for id := range s.conversations {
		a.markLocked(id)
	}
	s.mu.Unlock()
	return a
}

// markLocked must be called with the session lock held.
func (a *Attachment) markLocked(chatID string) {
	a.dirty[chatID] = true
	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// ConversationUpdates fires when at least one open conversation changed.
func (a *Attachment) ConversationUpdates() <-chan struct{} { return a.signal }

// ChangedConversations returns the conversations changed since the last
// call, ordered by chat id, and clears the set.
func (a *Attachment) ChangedConversations() []*chat.Conversation {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	out := make([]*chat.Conversation, 0, len(a.dirty))
	for id := range a.dirty {
		if oc, ok := a.s.conversations[id]; ok {
			out = append(out, oc.Conversation)
		}
	}
	a.dirty = make(map[string]bool)
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// Detach ends the attachment. When it was the last one, every open
// conversation is closed so nothing marks messages read for a viewer who
// is no longer looking.
func (a *Attachment) Detach() {
	a.detach.Do(func() {
		s := a.s
		s.mu.Lock()
		delete(s.attachments, a)
		s.lastSeen = s.now()
		var closing []*openConversation
		if len(s.attachments) == 0 {
			for id, oc := range s.conversations {
				closing = append(closing, oc)
				delete(s.conversations, id)
			}
		}
		s.mu.Unlock()
		for _, oc := range closing {
			oc.close()
		}
	})
}

// Done is closed when the session is disposed
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Conversation returns the open conversation for chatID, subscribing on
// first use. The caller must already have checked that the viewer takes
// part in the chat.
func (s *Session) Conversation(chatID string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, docstore.ErrClosed
	}
	if oc, ok := s.conversations[chatID]; ok {
		oc.lastUsed = s.now()
		return oc.Conversation, nil
	}
	c, err := chat.OpenConversation(s.ctx, s.store, s.receipts, s.ViewerID, chatID)
	if err != nil {
		return nil, err
	}
	oc := &openConversation{Conversation: c, stop: make(chan struct{}), lastUsed: s.now()}
	s.conversations[chatID] = oc
	go s.relay(oc)
	return c, nil
}

// relay marks oc changed for every attachment until oc is closed.
func (s *Session) relay(oc *openConversation) {
	for {
		select {
		case <-oc.Updates():
			s.mu.Lock()
			for a := range s.attachments {
				a.markLocked(oc.ChatID)
			}
			s.mu.Unlock()
		case <-oc.stop:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (oc *openConversation) close() {
	close(oc.stop)
	oc.Close()
}

// Conversations lists the open conversations ordered by chat id.
func (s *Session) Conversations() []*chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*chat.Conversation, 0, len(s.conversations))
	for _, oc := range s.conversations {
		out = append(out, oc.Conversation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// CloseConversation stops the conversation subscription for chatID
func (s *Session) CloseConversation(chatID string) {
	s.mu.Lock()
	oc, ok := s.conversations[chatID]
	delete(s.conversations, chatID)
	s.mu.Unlock()
	if ok {
		oc.close()
	}
}

// closeIdleConversations closes conversations unused for timeout while no
// live connection is attached. It returns how many were closed.
func (s *Session) closeIdleConversations(now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	if len(s.attachments) > 0 {
		s.mu.Unlock()
		return 0
	}
	var closing []*openConversation
	for id, oc := range s.conversations {
		if now.Sub(oc.lastUsed) >= timeout {
			closing = append(closing, oc)
			delete(s.conversations, id)
		}
	}
	s.mu.Unlock()
	for _, oc := range closing {
		oc.close()
	}
	return len(closing)
}

func (s *Session) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	convs := s.conversations
	s.conversations = nil
	s.mu.Unlock()

	s.cancel()
	for _, oc := range convs {
		oc.close()
	}
	if s.Typing != nil {
		s.Typing.Stop()
	}
	s.Chats.Close()
	s.Notifications.Close()
	s.Feed.Close()
}
