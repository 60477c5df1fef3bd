package priors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "priors.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "priors.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, store.Save(ctx, testPriors()))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPriors(), loaded, "order and values should round trip")

	// A second save replaces the table rather than appending.
	replacement := testPriors()[:2]
	replacement[0].Probability = 0.7
	replacement[1].Probability = 0.3
	require.NoError(t, store.Save(ctx, replacement))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, replacement, loaded)
}
