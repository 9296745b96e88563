package opslock_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/opslock"
)

func TestAcquire_SerializesConcurrentHolders(t *testing.T) {
	root := t.TempDir()

	first, err := opslock.Acquire(root)
	require.NoError(t, err)

	var secondAcquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		g, err := opslock.Acquire(root)
		require.NoError(t, err)
		secondAcquired.Store(true)
		require.NoError(t, g.Close())
	}()

	time.Sleep(200 * time.Millisecond)
	require.False(t, secondAcquired.Load(), "second acquisition must block while the first holds the lock")

	require.NoError(t, first.Close())
	<-done
	require.True(t, secondAcquired.Load())
}

func TestClose_IsIdempotent(t *testing.T) {
	root := t.TempDir()
	g, err := opslock.Acquire(root)
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
}
