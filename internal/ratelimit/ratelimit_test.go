package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBudget(t *testing.T) {
	l := NewMemoryLimiter(time.Minute, 3)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, err := l.Admit(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within budget", i+1)
	}
	allowed, err := l.Admit(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, allowed, "request over budget")

	// Other identities have their own window.
	allowed, err = l.Admit(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter(time.Minute, 1)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	allowed, err := l.Admit(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Requests inside the window are rejected and must not extend it.
	now = now.Add(30 * time.Second)
	allowed, err = l.Admit(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, allowed)

	// 61s after the window was armed: the counter has reset, even though the
	// rejected request happened 31s ago.
	now = now.Add(31 * time.Second)
	allowed, err = l.Admit(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}
