package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/memstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memstore.TermStore, *memstore.ContentStore) {
	t.Helper()
	terms, content := memstore.NewTermStore(), memstore.NewContentStore()
	cfg := config.IndexerConfig{ChunkMax: 64, MaxSegments: 16}
	return NewEngine(cfg, terms, content, opts...), terms, content
}

func search(t *testing.T, e *Engine, query string) []uint64 {
	t.Helper()
	res, err := e.Search(context.Background(), query)
	require.NoError(t, err)
	ids, err := res.Collect(0)
	require.NoError(t, err)
	return ids
}

func TestEngineInsertAndSearch(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, 1, "Four score and seven years ago", "Gettysburg Address"))
	require.NoError(t, e.Insert(ctx, 2, "Seven days without rain", "Weather report"))
	require.NoError(t, e.Insert(ctx, 3, "Years of solitude"))

	assert.Equal(t, []uint64{1, 2}, search(t, e, "seven"))
	assert.Equal(t, []uint64{1}, search(t, e, "seven years"))
	assert.Equal(t, []uint64{1, 3}, search(t, e, "years"))
	assert.Equal(t, []uint64{1}, search(t, e, `"four score"`))
	assert.Empty(t, search(t, e, `"score four"`))
	assert.Equal(t, []uint64{1}, search(t, e, `gettysburg`), "second column is indexed")
	assert.Empty(t, search(t, e, `"ago gettysburg"`), "phrases do not span columns")
	assert.Equal(t, []uint64{2, 3}, search(t, e, "rain OR solitude"))
	assert.Equal(t, []uint64{3}, search(t, e, "years -seven"))
	assert.Empty(t, search(t, e, ""))
}

func TestEnginePhraseAcrossStopWords(t *testing.T) {
	cfg := config.IndexerConfig{ChunkMax: 64, MaxSegments: 16, StopWords: true}
	e := NewEngine(cfg, memstore.NewTermStore(), memstore.NewContentStore())
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, 1, "the war of the worlds"))
	require.NoError(t, e.Insert(ctx, 2, "war worlds"))
	require.NoError(t, e.Insert(ctx, 3, "war in worlds"))

	assert.Equal(t, []uint64{1}, search(t, e, `"war of the worlds"`))
	assert.Equal(t, []uint64{1}, search(t, e, `"war a an worlds"`), "any two dropped words fill the gap")
	assert.Equal(t, []uint64{2}, search(t, e, `"war worlds"`))
	assert.Equal(t, []uint64{3}, search(t, e, `"war in worlds"`))
	assert.Equal(t, []uint64{1, 2, 3}, search(t, e, "war worlds"))

	q, err := e.Parse(`"War of the Worlds"`)
	require.NoError(t, err)
	assert.Equal(t, `"war * * worlds"`, q.String())
}

func TestEngineOrSurvivesShortWordFilter(t *testing.T) {
	e, _, _ := newTestEngine(t, WithTokenizer(tokenizer.NewSimple(tokenizer.Options{MinLen: 3})))
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, 1, "apple pie"))
	require.NoError(t, e.Insert(ctx, 2, "cherry tart"))

	assert.Equal(t, []uint64{1, 2}, search(t, e, "apple OR cherry"))
	assert.Empty(t, search(t, e, "apple cherry"))
}

func TestEngineInsertExisting(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, 9, "hello"))
	err := e.Insert(ctx, 9, "again")
	assert.ErrorIs(t, err, apperrors.ErrDocumentExists)
	assert.Empty(t, search(t, e, "again"))
}

func TestEngineDelete(t *testing.T) {
	e, _, content := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, 1, "red apple"))
	require.NoError(t, e.Insert(ctx, 2, "green apple"))
	require.NoError(t, e.Delete(ctx, 1))

	assert.Equal(t, []uint64{2}, search(t, e, "apple"))
	assert.Empty(t, search(t, e, "red"))
	assert.Equal(t, 1, content.Len())

	err := e.Delete(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	// A deleted docid can be inserted again.
	require.NoError(t, e.Insert(ctx, 1, "red cherry"))
	assert.Equal(t, []uint64{1}, search(t, e, "red"))
}

func TestEngineUpdate(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, 4, "old words here"))
	require.NoError(t, e.Update(ctx, 4, "new words there"))

	assert.Empty(t, search(t, e, "old"))
	assert.Equal(t, []uint64{4}, search(t, e, "words"))
	assert.Equal(t, []uint64{4}, search(t, e, `"new words"`))

	columns, err := e.Document(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"new words there"}, columns)

	assert.ErrorIs(t, e.Update(ctx, 5, "x"), apperrors.ErrDocumentNotFound)
}

func TestEnginePutUpserts(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Put(ctx, 3, "first version"))
	require.NoError(t, e.Put(ctx, 3, "second version"))
	assert.Empty(t, search(t, e, "first"))
	assert.Equal(t, []uint64{3}, search(t, e, "version"))
}

func TestEngineSearchErrors(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Search(context.Background(), `"open phrase`)
	assert.ErrorIs(t, err, parser.ErrUnterminatedPhrase)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	_, err = e.Search(context.Background(), "-alone")
	assert.ErrorIs(t, err, parser.ErrOnlyNot)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestEngineCorruptChunk(t *testing.T) {
	e, terms, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := terms.Insert(ctx, "broken", 0, []byte{5, 0x80})
	require.NoError(t, err)

	_, err = e.Search(ctx, "broken")
	assert.ErrorIs(t, err, doclist.ErrCorrupt)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

func TestEngineConsolidatesManyDocuments(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e, _, _ := newTestEngine(t, WithMetrics(m))
	ctx := context.Background()

	for i := uint64(0); i < 300; i++ {
		require.NoError(t, e.Insert(ctx, i, fmt.Sprintf("common term%d", i%7)))
	}
	var even []uint64
	for i := uint64(0); i < 300; i++ {
		if i%2 == 1 {
			require.NoError(t, e.Delete(ctx, i))
			continue
		}
		even = append(even, i)
	}

	assert.Equal(t, even, search(t, e, "common"))
	assert.Equal(t, []uint64{0, 14, 28}, search(t, e, "term0")[:3])

	infos, err := e.Segments(ctx, "common")
	require.NoError(t, err)
	assert.NotEmpty(t, infos)
	for _, info := range infos {
		if info.Segment == 0 {
			assert.LessOrEqual(t, info.Bytes, 64)
		}
	}
	assert.Equal(t, 300.0, testutil.ToFloat64(m.DocsIndexedTotal.WithLabelValues("insert")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.DocsIndexedTotal.WithLabelValues("delete")))
	assert.Positive(t, testutil.ToFloat64(m.SegmentCascadesTotal))
}

func TestResultsCursor(t *testing.T) {
	d, err := doclist.Encode(doclist.Docids, []doclist.Record{{Docid: 2}, {Docid: 5}, {Docid: 11}})
	require.NoError(t, err)
	r := NewResults(d)

	n, err := r.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.True(t, r.Next())
	assert.Equal(t, uint64(2), r.Docid())
	rest, err := r.Collect(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, rest)
	rest, err = r.Collect(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{11}, rest)
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())

	bad := NewResults(doclist.FromBytes(doclist.Docids, []byte{0x80}))
	assert.False(t, bad.Next())
	assert.ErrorIs(t, bad.Err(), doclist.ErrCorrupt)
}
