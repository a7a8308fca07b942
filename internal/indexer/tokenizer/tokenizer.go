// Package tokenizer splits column text into terms. A Tokenizer hands out a
// forward-only Cursor per text; the Simple tokenizer lower-cases input and
// splits on runs of letters and digits, optionally dropping stop-words.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is one term occurrence. Start and End are byte offsets into the text
// passed to Open; Position counts words from zero.
type Token struct {
	Term     string
	Start    int
	End      int
	Position int
}

// Tokenizer opens cursors over text.
type Tokenizer interface {
	Open(text string) Cursor
}

// Cursor yields tokens in increasing position order. Next returns false once
// the text is exhausted and keeps returning false afterwards.
type Cursor interface {
	Next() (Token, bool)
	Close() error
}

// Options tune the Simple tokenizer. The zero value keeps every word as is
// apart from lower-casing.
type Options struct {
	StopWords bool `yaml:"stopWords"`
	// MinLen drops words shorter than MinLen runes.
	MinLen int `yaml:"minLen"`
}

// Simple is the default Tokenizer.
type Simple struct {
	opts Options
}

// NewSimple returns a Simple tokenizer with opts.
func NewSimple(opts Options) *Simple {
	return &Simple{opts: opts}
}

func (s *Simple) Open(text string) Cursor {
	return &cursor{text: text, opts: s.opts}
}

type cursor struct {
	text string
	off  int
	pos  int
	opts Options
	done bool
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (c *cursor) Next() (Token, bool) {
	for !c.done {
		start, end := c.scan()
		if start < 0 {
			c.done = true
			break
		}
		word := strings.ToLower(c.text[start:end])
		pos := c.pos
		// Dropped words still take a position so phrases do not match
		// across them.
		c.pos++
		if c.opts.MinLen > 0 && utf8.RuneCountInString(word) < c.opts.MinLen {
			continue
		}
		if c.opts.StopWords {
			if _, stop := stopWords[word]; stop {
				continue
			}
		}
		return Token{Term: word, Start: start, End: end, Position: pos}, true
	}
	return Token{}, false
}

// scan advances past the next word and returns its byte range, or -1 when
// no word is left.
func (c *cursor) scan() (int, int) {
	start := -1
	for c.off < len(c.text) {
		r, n := utf8.DecodeRuneInString(c.text[c.off:])
		if isWordRune(r) {
			if start < 0 {
				start = c.off
			}
		} else if start >= 0 {
			return start, c.off
		}
		c.off += n
	}
	if start < 0 {
		return -1, -1
	}
	return start, c.off
}

func (c *cursor) Close() error {
	c.done = true
	return nil
}

// Tokenize returns every token of text.
func Tokenize(t Tokenizer, text string) []Token {
	c := t.Open(text)
	defer c.Close()
	var tokens []Token
	for {
		tok, ok := c.Next()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// "or" is absent so the query keyword OR survives tokenization.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}
