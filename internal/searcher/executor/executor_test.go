package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/tracing"
)

var tok = tokenizer.NewSimple(tokenizer.Options{})

type memSource struct {
	terms map[string]*doclist.DocList
	calls []string
	err   error
}

func (s *memSource) TermDoclist(_ context.Context, term string) (*doclist.DocList, error) {
	s.calls = append(s.calls, term)
	if s.err != nil {
		return nil, s.err
	}
	if d, ok := s.terms[term]; ok {
		return d, nil
	}
	return doclist.New(doclist.PositionsOffsets), nil
}

// newSource indexes docs, given in increasing docid order.
func newSource(t *testing.T, docs ...[]string) *memSource {
	t.Helper()
	return newSourceWith(t, tok, docs...)
}

func newSourceWith(t *testing.T, tk tokenizer.Tokenizer, docs ...[]string) *memSource {
	t.Helper()
	s := &memSource{terms: map[string]*doclist.DocList{}}
	for i, cols := range docs {
		doc, err := index.Build(tk, uint64(i+1), cols)
		require.NoError(t, err)
		for term, rec := range doc.Terms {
			acc, ok := s.terms[term]
			if !ok {
				acc = doclist.New(doclist.PositionsOffsets)
				s.terms[term] = acc
			}
			require.NoError(t, doclist.Accumulate(acc, rec))
		}
	}
	return s
}

func run(t *testing.T, s TermSource, query string) []uint64 {
	t.Helper()
	return runWith(t, tok, s, query)
}

func runWith(t *testing.T, tk tokenizer.Tokenizer, s TermSource, query string) []uint64 {
	t.Helper()
	q, err := parser.Parse(tk, query)
	require.NoError(t, err)
	d, err := New(s).Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, doclist.Docids, d.Variant())
	ids, err := doclist.DocidsOf(d)
	require.NoError(t, err)
	return ids
}

func TestGettysburg(t *testing.T) {
	s := newSource(t,
		[]string{"four score and seven years ago our fathers"},
		[]string{"four score years ago"},
		[]string{"four score and years ago slavery"},
		[]string{"score four ago years"},
		[]string{"four years ago"},
	)
	assert.Equal(t, []uint64{1, 2}, run(t, s, `four score "years ago" -slavery`))
}

func TestOrBindsTighterThanAnd(t *testing.T) {
	s := newSource(t,
		[]string{"a b"},
		[]string{"a c"},
		[]string{"b c"},
		[]string{"c"},
	)
	assert.Equal(t, []uint64{1, 2}, run(t, s, "a b OR c"))
	assert.Equal(t, []uint64{2, 3}, run(t, s, "a OR b c"))
	assert.Equal(t, []uint64{1, 2, 3, 4}, run(t, s, "a OR b OR c"))
	assert.Equal(t, []uint64{2, 4}, run(t, s, "a OR b OR c -b a OR c"))
}

func TestNotTerms(t *testing.T) {
	s := newSource(t,
		[]string{"apple banana"},
		[]string{"apple cherry"},
		[]string{"apple"},
	)
	assert.Equal(t, []uint64{3}, run(t, s, "apple -banana -cherry"))
	assert.Equal(t, []uint64{1, 2, 3}, run(t, s, "apple -durian"))
	assert.Empty(t, run(t, s, "durian -apple"))
}

func TestPhrases(t *testing.T) {
	s := newSource(t,
		[]string{"new", "york"},
		[]string{"a new york minute"},
		[]string{"york new"},
		[]string{"title", "the new york new york times"},
	)
	assert.Equal(t, []uint64{2, 4}, run(t, s, `"new york"`))
	assert.Equal(t, []uint64{4}, run(t, s, `"new york new york"`))
	assert.Equal(t, []uint64{2}, run(t, s, `"new york minute" OR "missing phrase"`))
	assert.Empty(t, run(t, s, `"york minute new"`))
}

func TestPhrasesSkipStopWords(t *testing.T) {
	stop := tokenizer.NewSimple(tokenizer.Options{StopWords: true})
	s := newSourceWith(t, stop,
		[]string{"the war of the worlds"},
		[]string{"war worlds"},
		[]string{"war of worlds", "state of the art"},
	)
	assert.Equal(t, []uint64{1}, runWith(t, stop, s, `"war of the worlds"`))
	assert.Equal(t, []uint64{2}, runWith(t, stop, s, `"war worlds"`))
	assert.Equal(t, []uint64{3}, runWith(t, stop, s, `"war of worlds"`))
	assert.Equal(t, []uint64{3}, runWith(t, stop, s, `"state of the art"`))
	assert.Equal(t, []uint64{1, 2, 3}, runWith(t, stop, s, `"the war of"`), "edge stop-words add no constraint")
}

func TestOnlyNotFailsBeforeReading(t *testing.T) {
	s := newSource(t, []string{"a"})
	q, err := parser.Parse(tok, "-a -b")
	require.NoError(t, err)

	_, err = New(s).Execute(context.Background(), q)
	assert.ErrorIs(t, err, parser.ErrOnlyNot)
	assert.Empty(t, s.calls)
}

func TestEmptyAndUnknown(t *testing.T) {
	s := newSource(t, []string{"a"})
	assert.Empty(t, run(t, s, ""))
	assert.Empty(t, run(t, s, "zzz"))
	assert.Empty(t, run(t, s, "a zzz"))
}

func TestSourceErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	s := &memSource{err: boom}
	q, err := parser.Parse(tok, "a")
	require.NoError(t, err)

	_, err = New(s).Execute(context.Background(), q)
	assert.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	s := newSource(t, []string{"a"})
	q, err := parser.Parse(tok, "a")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(s).Execute(ctx, q)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteRecordsUnitSpans(t *testing.T) {
	s := newSource(t, []string{"red apple pie"}, []string{"green apple"})
	q, err := parser.Parse(tok, `apple "apple pie" -green`)
	require.NoError(t, err)

	ctx, root := tracing.Start(context.Background(), "search", "trace-1")
	_, err = New(s).Execute(ctx, q)
	require.NoError(t, err)

	children := root.Children()
	require.Len(t, children, 3)
	for _, c := range children {
		assert.Equal(t, "unit", c.Name)
		assert.Equal(t, "trace-1", c.TraceID)
	}
}
