package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_SerialisesOverlappingPairs(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "b", "a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Acquire(ctx, "a", "c")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("overlapping pair acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}

func TestKeyedLocker_DisjointPairsDoNotBlock(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "a", "b")
	require.NoError(t, err)
	defer r1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx2, "c", "d")
	require.NoError(t, err)
	r2()
}

func TestKeyedLocker_ContextCancelReleasesPartialHold(t *testing.T) {
	l := NewKeyedLocker()

	hold, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	hold()

	// "a" must have been released by the failed attempt.
	r, err := l.Acquire(context.Background(), "a", "b")
	require.NoError(t, err)
	r()
}

func TestKeyedLocker_ReleaseIsIdempotent(t *testing.T) {
	l := NewKeyedLocker()
	r, err := l.Acquire(context.Background(), "a", "a")
	require.NoError(t, err)
	r()
	r()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := l.Acquire(context.Background(), "a")
			if err == nil {
				r()
			}
		}()
	}
	wg.Wait()
}
