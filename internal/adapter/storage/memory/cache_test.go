package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetSet(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"ok":true}`), time.Minute))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTTLCache_CheckAndSet(t *testing.T) {
	c := NewTTLCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	fresh, err := c.CheckAndSet(ctx, "device-1", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = c.CheckAndSet(ctx, "device-1", "n1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	fresh, err = c.CheckAndSet(ctx, "device-2", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh, "nonces are scoped")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, c.Sweep())
	fresh, err = c.CheckAndSet(ctx, "device-1", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}
