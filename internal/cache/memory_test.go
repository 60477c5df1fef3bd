package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/domain"
)

func TestMemoryCache_PutGetDelete(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	session := domain.NewTriageSession("fever")
	session.SessionID = "s-1"
	require.NoError(t, c.Put(ctx, session))

	got, err := c.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "fever", got.PrimarySymptom)

	got.PrimarySymptom = "mutated"
	again, err := c.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "fever", again.PrimarySymptom)

	require.NoError(t, c.Delete(ctx, "s-1"))
	_, err = c.Get(ctx, "s-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCache_PutStoresCopy(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	session := domain.NewTriageSession("fever")
	session.SessionID = "s-1"
	require.NoError(t, c.Put(ctx, session))
	session.PrimarySymptom = "changed after put"

	got, err := c.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "fever", got.PrimarySymptom)
}

func TestMemoryCache_EvictsBeyondSize(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		s := domain.NewTriageSession("fever")
		s.SessionID = id
		require.NoError(t, c.Put(ctx, s))
	}

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10, 20*time.Millisecond)
	ctx := context.Background()

	s := domain.NewTriageSession("fever")
	s.SessionID = "short-lived"
	require.NoError(t, c.Put(ctx, s))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short-lived")
		return err == domain.ErrNotFound
	}, time.Second, 10*time.Millisecond)
}
