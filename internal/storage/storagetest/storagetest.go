// Package storagetest holds a conformance suite shared by every storage
// backend.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage"
)

// RunTermStore exercises s, which must start empty.
func RunTermStore(t *testing.T, s storage.TermStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.SelectSegment(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	id1, err := s.Insert(ctx, "alpha", 1, []byte{1, 2})
	require.NoError(t, err)
	id0, err := s.Insert(ctx, "alpha", 0, []byte{3})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "beta", 0, []byte{9})
	require.NoError(t, err)
	assert.NotEqual(t, id0, id1)

	_, err = s.Insert(ctx, "alpha", 0, []byte{4})
	assert.ErrorIs(t, err, storage.ErrSegmentExists)

	row, ok, err := s.SelectSegment(ctx, "alpha", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id1, row.ID)
	assert.Equal(t, []byte{1, 2}, row.Doclist)

	rows, err := s.SelectAll(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Segment)
	assert.Equal(t, 1, rows[1].Segment)

	require.NoError(t, s.Update(ctx, id0, []byte{5, 6, 7}))
	row, ok, err = s.SelectSegment(ctx, "alpha", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{5, 6, 7}, row.Doclist)

	require.NoError(t, s.Delete(ctx, id0))
	_, ok, err = s.SelectSegment(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// A freed segment can be taken again.
	_, err = s.Insert(ctx, "alpha", 0, []byte{8})
	require.NoError(t, err)

	rows, err = s.SelectAll(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, rows)

	if lister, ok := s.(storage.TermLister); ok {
		terms, err := lister.Terms(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta"}, terms)
	}
}

// RunContentStore exercises s, which must start empty.
func RunContentStore(t *testing.T, s storage.ContentStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Put(ctx, 1, []string{"title", "body text"}))
	require.NoError(t, s.Put(ctx, 1<<63+5, []string{"big id"}))

	cols, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body text"}, cols)

	cols, err = s.Get(ctx, 1<<63+5)
	require.NoError(t, err)
	assert.Equal(t, []string{"big id"}, cols)

	require.NoError(t, s.Put(ctx, 1, []string{"replaced", ""}))
	cols, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"replaced", ""}, cols)

	require.NoError(t, s.Delete(ctx, 1))
	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 1), storage.ErrNotFound)
}
