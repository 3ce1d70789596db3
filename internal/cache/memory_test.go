package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounter_IncrWithinWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	for i := int64(1); i <= 3; i++ {
		n, err := c.Incr(ctx, "login:ann", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := c.Get(ctx, "login:ann")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMemoryCounter_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	_, _ = c.Incr(ctx, "k", time.Minute)
	_, _ = c.Incr(ctx, "k", time.Minute)

	now = now.Add(61 * time.Second)

	n, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window restarts after expiry")
}

func TestMemoryCounter_Reset(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	_, _ = c.Incr(ctx, "k", time.Minute)
	require.NoError(t, c.Reset(ctx, "k"))

	n, _ := c.Get(ctx, "k")
	assert.Zero(t, n)
}

func TestMemoryCounter_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	_, _ = c.Incr(ctx, "short", time.Second)
	_, _ = c.Incr(ctx, "long", time.Hour)

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.Sweep())

	n, _ := c.Get(ctx, "long")
	assert.Equal(t, int64(1), n)
}

func TestMemoryCounter_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Incr(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	n, _ := c.Get(ctx, "k")
	assert.Equal(t, int64(50), n)
}
