package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "bhc:lock:booking:poblacion:d1:2026-03-02", Key("booking", "poblacion", "d1", "2026-03-02"))
}

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = l.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err)

	release()
	release()

	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLocker_Expiry(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	staleRelease, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	// The expired holder must not release the new holder's lock.
	staleRelease()
	_, err = l.Acquire(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAcquireWait(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	release2, err := AcquireWait(ctx, l, "k", time.Minute, 2*time.Second)
	require.NoError(t, err)
	release2()
}

func TestAcquireWait_GivesUp(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	_, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = AcquireWait(ctx, l, "k", time.Minute, 50*time.Millisecond)
	assert.True(t, errors.Is(err, ErrLocked))
}
