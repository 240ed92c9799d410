package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/docstore/memory"
)

type presenceLog struct {
	mu     sync.Mutex
	online map[string]bool
}

func (p *presenceLog) SetPresence(_ context.Context, uid string, online bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online == nil {
		p.online = make(map[string]bool)
	}
	p.online[uid] = online
	return nil
}

func (p *presenceLog) get(uid string) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	on, ok := p.online[uid]
	return on, ok
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHub(t *testing.T) (*Hub, *presenceLog, *clock) {
	t.Helper()
	presence := &presenceLog{}
	clk := &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	h := NewHub(memory.New(), presence, nil, Config{IdleTimeout: time.Minute})
	h.now = clk.Now
	t.Cleanup(h.Close)
	return h, presence, clk
}

func TestGetReusesSession(t *testing.T) {
	h, presence, _ := newTestHub(t)
	ctx := context.Background()

	s1, err := h.Get(ctx, "u1")
	require.NoError(t, err)
	s2, err := h.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, h.Len())

	on, ok := presence.get("u1")
	assert.True(t, ok)
	assert.True(t, on)
}

func TestSweepDisposesIdleSessions(t *testing.T) {
	h, presence, clk := newTestHub(t)
	ctx := context.Background()

	idle, err := h.Get(ctx, "idle")
	require.NoError(t, err)
	live, err := h.Get(ctx, "live")
	require.NoError(t, err)
	att := live.Attach()

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, h.Sweep(clk.Now()))
	assert.Equal(t, 1, h.Len())

	select {
	case <-idle.Done():
	default:
		t.Fatal("idle session was not disposed")
	}
	on, _ := presence.get("idle")
	assert.False(t, on)

	att.Detach()
	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, h.Sweep(clk.Now()))
	assert.Zero(t, h.Len())
}

func TestCloseRejectsNewSessions(t *testing.T) {
	h, presence, _ := newTestHub(t)
	ctx := context.Background()

	_, err := h.Get(ctx, "u1")
	require.NoError(t, err)
	h.Close()

	on, _ := presence.get("u1")
	assert.False(t, on)
	_, err = h.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestConversationsAreSharedAndClosable(t *testing.T) {
	h, _, _ := newTestHub(t)
	s, err := h.Get(context.Background(), "u1")
	require.NoError(t, err)

	c1, err := s.Conversation("chat-1")
	require.NoError(t, err)
	c2, err := s.Conversation("chat-1")
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	s.CloseConversation("chat-1")
	c3, err := s.Conversation("chat-1")
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}

func TestRunClosesHubOnCancel(t *testing.T) {
	h, _, _ := newTestHub(t)
	_, err := h.Get(context.Background(), "u1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Zero(t, h.Len())
}
