package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND", "")
	t.Setenv("FEED_PAGE_SIZE", "")
	t.Setenv("PORT", "")
	t.Setenv("SESSION_IDLE_TIMEOUT", "")
	t.Setenv("CONVERSATION_IDLE_TIMEOUT", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendFirestore, cfg.Backend)
	assert.Equal(t, 40, cfg.FeedPageSize)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 2*time.Minute, cfg.ConversationIdleTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND", "memory")
	t.Setenv("FEED_PAGE_SIZE", "25")
	t.Setenv("FEED_LIVE_WINDOW", "not-a-number")
	t.Setenv("SESSION_IDLE_TIMEOUT", "90s")

	cfg := Load()
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 25, cfg.FeedPageSize)
	assert.Equal(t, 50, cfg.FeedLiveWindow)
	assert.Equal(t, 90*time.Second, cfg.SessionIdleTimeout)
}
