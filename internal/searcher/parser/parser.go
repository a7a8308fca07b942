// Package parser turns a query string into a flat list of query terms.
//
// Syntax: whitespace-separated terms are AND-ed; "..." groups a phrase; the
// keyword OR (upper case) joins its neighbours; a '-' written directly
// before a term outside a phrase excludes documents containing it. Runs of
// OR-joined terms bind tighter than AND, so
//
//	one two OR three   ==>  one AND (two OR three)
//	one OR two three   ==>  (one OR two) AND three
//
// A negated term cannot be the right operand of OR; its '-' is ignored.
// Words the tokenizer drops inside a phrase leave a gap the phrase must
// reproduce.
package parser

import (
	"errors"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/tokenizer"
)

var (
	ErrUnterminatedPhrase = errors.New("query: unterminated phrase")
	ErrOnlyNot            = errors.New("query: at least one term must not be negated")
)

// QueryTerm is one tokenized query word. The first word of a phrase carries
// the number of words following it in PhraseFollowing. Skipped counts the
// words the tokenizer dropped between a phrase word and the one before it.
type QueryTerm struct {
	Text            string
	PhraseFollowing int
	Skipped         int
	IsOr            bool
	IsNot           bool
}

// Query is a parsed query.
type Query struct {
	Terms []QueryTerm
	Raw   string
}

// Unit is a single term or a whole phrase. Skipped is nil unless some
// phrase word follows dropped words; otherwise it parallels Terms.
type Unit struct {
	Terms   []string
	Skipped []int
	IsOr    bool
	IsNot   bool
}

// IsPhrase reports whether u spans more than one word.
func (u Unit) IsPhrase() bool { return len(u.Terms) > 1 }

// Distance is how many positions Terms[i] must sit after Terms[i-1].
func (u Unit) Distance(i int) int {
	if i < len(u.Skipped) {
		return 1 + u.Skipped[i]
	}
	return 1
}

// Parse splits query at double quotes and tokenizes each piece with tok.
func Parse(tok tokenizer.Tokenizer, query string) (*Query, error) {
	p := &parseState{q: &Query{Raw: query}, tok: tok}
	inPhrase := false
	rest := query
	for {
		i := strings.IndexByte(rest, '"')
		if i < 0 {
			p.segment(rest, inPhrase)
			break
		}
		p.segment(rest[:i], inPhrase)
		rest = rest[i+1:]
		inPhrase = !inPhrase
	}
	if inPhrase {
		return nil, ErrUnterminatedPhrase
	}
	return p.q, nil
}

type parseState struct {
	q        *Query
	tok      tokenizer.Tokenizer
	nextIsOr bool
}

func (p *parseState) segment(text string, inPhrase bool) {
	if text == "" {
		return
	}
	if inPhrase {
		p.phrase(text)
		return
	}
	// OR is matched on the raw words, so a tokenizer that drops short words
	// cannot hide it.
	for _, field := range strings.Fields(text) {
		if field == "OR" && len(p.q.Terms) > 0 {
			p.nextIsOr = true
			continue
		}
		c := p.tok.Open(field)
		for t, ok := c.Next(); ok; t, ok = c.Next() {
			term := QueryTerm{Text: t.Term, IsOr: p.nextIsOr}
			p.nextIsOr = false
			if t.Start > 0 && field[t.Start-1] == '-' && !term.IsOr {
				term.IsNot = true
			}
			p.q.Terms = append(p.q.Terms, term)
		}
		c.Close()
	}
}

// phrase tokenizes the text between two quotes as a single unit. Positions
// come from one cursor so dropped words show up as gaps.
func (p *parseState) phrase(text string) {
	first := len(p.q.Terms)
	c := p.tok.Open(text)
	defer c.Close()
	prev := 0
	for t, ok := c.Next(); ok; t, ok = c.Next() {
		term := QueryTerm{Text: t.Term}
		if len(p.q.Terms) == first {
			term.IsOr = p.nextIsOr
			p.nextIsOr = false
		} else {
			term.Skipped = t.Position - prev - 1
		}
		prev = t.Position
		p.q.Terms = append(p.q.Terms, term)
	}
	if len(p.q.Terms) > first {
		p.q.Terms[first].PhraseFollowing = len(p.q.Terms) - first - 1
	}
}

// Units groups the terms into single terms and phrases.
func (q *Query) Units() []Unit {
	var units []Unit
	for i := 0; i < len(q.Terms); i += q.Terms[i].PhraseFollowing + 1 {
		t := q.Terms[i]
		end := min(i+t.PhraseFollowing+1, len(q.Terms))
		u := Unit{IsOr: t.IsOr, IsNot: t.IsNot}
		var skipped []int
		gaps := false
		for _, w := range q.Terms[i:end] {
			u.Terms = append(u.Terms, w.Text)
			skipped = append(skipped, w.Skipped)
			gaps = gaps || w.Skipped > 0
		}
		if gaps {
			u.Skipped = skipped
		}
		units = append(units, u)
	}
	return units
}

// Validate rejects queries that cannot be evaluated without a positive
// term. An empty query is valid and matches nothing.
func (q *Query) Validate() error {
	if len(q.Terms) == 0 {
		return nil
	}
	for _, u := range q.Units() {
		if !u.IsNot {
			return nil
		}
	}
	return ErrOnlyNot
}

// Empty reports whether the query has no terms.
func (q *Query) Empty() bool { return len(q.Terms) == 0 }

// String renders q in canonical form. Queries that evaluate identically
// render identically, which makes the result usable as a cache key.
func (q *Query) String() string {
	var sb strings.Builder
	for i, u := range q.Units() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if u.IsOr {
			sb.WriteString("OR ")
		}
		if u.IsNot {
			sb.WriteByte('-')
		}
		if u.IsPhrase() {
			// Dropped words render as '*' so that "war of the worlds" and
			// "war worlds" do not share a canonical form.
			sb.WriteByte('"')
			for j, w := range u.Terms {
				if j > 0 {
					sb.WriteByte(' ')
					sb.WriteString(strings.Repeat("* ", u.Distance(j)-1))
				}
				sb.WriteString(w)
			}
			sb.WriteByte('"')
		} else {
			sb.WriteString(u.Terms[0])
		}
	}
	return sb.String()
}
