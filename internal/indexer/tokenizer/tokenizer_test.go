package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

func TestSimpleSplitsAndLowercases(t *testing.T) {
	tokens := Tokenize(NewSimple(Options{}), "Four score, and SEVEN-years ago!")
	assert.Equal(t, []string{"four", "score", "and", "seven", "years", "ago"}, terms(tokens))

	assert.Equal(t, Token{Term: "four", Start: 0, End: 4, Position: 0}, tokens[0])
	assert.Equal(t, Token{Term: "score", Start: 5, End: 10, Position: 1}, tokens[1])
	assert.Equal(t, Token{Term: "seven", Start: 16, End: 21, Position: 3}, tokens[3])
	assert.Equal(t, Token{Term: "ago", Start: 28, End: 31, Position: 5}, tokens[5])
}

func TestSimpleUnicodeOffsets(t *testing.T) {
	tokens := Tokenize(NewSimple(Options{}), "Überall ünd 42x")
	require.Len(t, tokens, 3)
	assert.Equal(t, "überall", tokens[0].Term)
	assert.Equal(t, 0, tokens[0].Start)
	assert.Equal(t, 8, tokens[0].End, "Ü is two bytes")
	assert.Equal(t, "42x", tokens[2].Term)
}

func TestSimpleEmptyAndPunctuation(t *testing.T) {
	assert.Empty(t, Tokenize(NewSimple(Options{}), ""))
	assert.Empty(t, Tokenize(NewSimple(Options{}), " -- ?! "))
}

func TestDroppedWordsKeepPositions(t *testing.T) {
	tokens := Tokenize(NewSimple(Options{StopWords: true, MinLen: 2}), "the cat is a pet")
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Term: "cat", Start: 4, End: 7, Position: 1}, tokens[0])
	assert.Equal(t, Token{Term: "pet", Start: 13, End: 16, Position: 4}, tokens[1])
}

func TestWordsAreNotStemmed(t *testing.T) {
	tokens := Tokenize(NewSimple(Options{StopWords: true}), "running relational cats")
	assert.Equal(t, []string{"running", "relational", "cats"}, terms(tokens))
}

func TestCursorStaysExhausted(t *testing.T) {
	c := NewSimple(Options{}).Open("one")
	_, ok := c.Next()
	require.True(t, ok)
	_, ok = c.Next()
	assert.False(t, ok)
	_, ok = c.Next()
	assert.False(t, ok)
	assert.NoError(t, c.Close())

	closed := NewSimple(Options{}).Open("a b")
	require.NoError(t, closed.Close())
	_, ok = closed.Next()
	assert.False(t, ok)
}
