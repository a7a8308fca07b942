package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/tokenizer"
)

type fixedTokenizer []tokenizer.Token

func (f fixedTokenizer) Open(string) tokenizer.Cursor { return &fixedCursor{tokens: f} }

type fixedCursor struct {
	tokens []tokenizer.Token
	i      int
}

func (c *fixedCursor) Next() (tokenizer.Token, bool) {
	if c.i >= len(c.tokens) {
		return tokenizer.Token{}, false
	}
	c.i++
	return c.tokens[c.i-1], true
}

func (c *fixedCursor) Close() error { return nil }

func TestBuildRecordsColumnsAndOffsets(t *testing.T) {
	tok := tokenizer.NewSimple(tokenizer.Options{})
	doc, err := Build(tok, 42, []string{"Red fox", "the red red hen"})
	require.NoError(t, err)

	assert.Equal(t, []string{"fox", "hen", "red", "the"}, doc.SortedTerms())

	records, err := doclist.Decode(doc.Terms["red"])
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(42), records[0].Docid)
	assert.Equal(t, []doclist.Position{
		{Column: 0, Pos: 0, Start: 0, End: 3},
		{Column: 1, Pos: 1, Start: 4, End: 7},
		{Column: 1, Pos: 2, Start: 8, End: 11},
	}, records[0].Positions)
}

func TestBuildRejectsBadPositions(t *testing.T) {
	_, err := Build(fixedTokenizer{{Term: "x", Position: -1}}, 1, []string{"x"})
	assert.ErrorIs(t, err, ErrNegativePosition)

	_, err = Build(fixedTokenizer{{Term: "x", Position: 1 << 33}}, 1, []string{"x"})
	assert.ErrorIs(t, err, ErrPositionRange)

	_, err = Build(fixedTokenizer{{Term: "x", Position: 2}, {Term: "x", Position: 2}}, 1, []string{"x x"})
	assert.ErrorIs(t, err, doclist.ErrPositionOrder)
}

func TestDeletionAndReplace(t *testing.T) {
	tok := tokenizer.NewSimple(tokenizer.Options{})
	old, err := Build(tok, 7, []string{"old shared"})
	require.NoError(t, err)
	updated, err := Build(tok, 7, []string{"shared new"})
	require.NoError(t, err)

	writes, err := Replace(old, updated)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old", "shared"}, writes.SortedTerms())
	assert.Equal(t, "7()", writes.Terms["old"].String())
	assert.Equal(t, "7(0:0)", writes.Terms["shared"].String())
	assert.Equal(t, "7(0:1)", writes.Terms["new"].String())

	del, err := Deletion(7, old.SortedTerms())
	require.NoError(t, err)
	assert.Equal(t, "7()", del.Terms["shared"].String())

	_, err = Replace(old, &Document{Docid: 8})
	assert.Error(t, err)
}
