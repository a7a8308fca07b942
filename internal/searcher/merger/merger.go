// Package merger combines doclists. And, Or and Except are set operations on
// docids; Phrase joins two position lists on adjacency.
package merger

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
)

// peek returns the next docid of both readers. Callers check AtEnd first.
func peek(l, r *doclist.Reader) (uint64, uint64, error) {
	ld, err := l.PeekDocid()
	if err != nil {
		return 0, 0, err
	}
	rd, err := r.PeekDocid()
	if err != nil {
		return 0, 0, err
	}
	return ld, rd, nil
}

// And returns the docids present in both l and r.
func And(l, r *doclist.DocList) (*doclist.DocList, error) {
	out := doclist.New(doclist.Docids)
	lr, rr := doclist.NewReader(l), doclist.NewReader(r)
	for !lr.AtEnd() && !rr.AtEnd() {
		ld, rd, err := peek(lr, rr)
		if err != nil {
			return nil, err
		}
		switch {
		case ld < rd:
			err = lr.SkipDocument()
		case rd < ld:
			err = rr.SkipDocument()
		default:
			if err = out.AddDocid(ld); err == nil {
				err = skipBoth(lr, rr)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Or returns the docids present in l or r.
func Or(l, r *doclist.DocList) (*doclist.DocList, error) {
	out := doclist.New(doclist.Docids)
	lr, rr := doclist.NewReader(l), doclist.NewReader(r)
	for !lr.AtEnd() && !rr.AtEnd() {
		ld, rd, err := peek(lr, rr)
		if err != nil {
			return nil, err
		}
		switch {
		case ld < rd:
			if err = out.AddDocid(ld); err == nil {
				err = lr.SkipDocument()
			}
		case rd < ld:
			if err = out.AddDocid(rd); err == nil {
				err = rr.SkipDocument()
			}
		default:
			if err = out.AddDocid(ld); err == nil {
				err = skipBoth(lr, rr)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if err := drain(out, lr); err != nil {
		return nil, err
	}
	if err := drain(out, rr); err != nil {
		return nil, err
	}
	return out, nil
}

// Except returns the docids of l that are absent from r.
func Except(l, r *doclist.DocList) (*doclist.DocList, error) {
	out := doclist.New(doclist.Docids)
	lr, rr := doclist.NewReader(l), doclist.NewReader(r)
	for !lr.AtEnd() && !rr.AtEnd() {
		ld, rd, err := peek(lr, rr)
		if err != nil {
			return nil, err
		}
		if ld < rd {
			err = out.AddDocid(ld)
		}
		if err == nil && rd <= ld {
			err = rr.SkipDocument()
		}
		if err == nil && ld <= rd {
			err = lr.SkipDocument()
		}
		if err != nil {
			return nil, err
		}
	}
	if err := drain(out, lr); err != nil {
		return nil, err
	}
	return out, nil
}

// Phrase keeps the docids where some position of r directly follows a
// position of l in the same column. l is the already matched prefix of a
// phrase and r its next term, so with a Positions output the matching
// positions of r are emitted and can feed the next Phrase call.
func Phrase(l, r *doclist.DocList, out doclist.Variant) (*doclist.DocList, error) {
	return PhraseAt(l, r, 1, out)
}

// PhraseAt is Phrase with r expected distance positions after l. A distance
// above one spans words the tokenizer dropped, such as stop-words.
func PhraseAt(l, r *doclist.DocList, distance int, out doclist.Variant) (*doclist.DocList, error) {
	if distance < 1 {
		return nil, fmt.Errorf("merger: phrase distance %d must be positive", distance)
	}
	if out == doclist.PositionsOffsets {
		return nil, fmt.Errorf("%w: phrase output cannot carry offsets", doclist.ErrVariantMismatch)
	}
	if !l.Variant().HasPositions() || !r.Variant().HasPositions() {
		return nil, fmt.Errorf("%w: phrase of %s and %s", doclist.ErrVariantMismatch, l.Variant(), r.Variant())
	}

	res := doclist.New(out)
	lr, rr := doclist.NewReader(l), doclist.NewReader(r)
	var left, right, matches []doclist.Position
	for !lr.AtEnd() && !rr.AtEnd() {
		ld, rd, err := peek(lr, rr)
		if err != nil {
			return nil, err
		}
		if ld != rd {
			if ld < rd {
				err = lr.SkipDocument()
			} else {
				err = rr.SkipDocument()
			}
			if err != nil {
				return nil, err
			}
			continue
		}

		if left, err = readList(lr, left[:0]); err != nil {
			return nil, err
		}
		if right, err = readList(rr, right[:0]); err != nil {
			return nil, err
		}
		matches = adjacent(left, right, uint32(distance), matches[:0])
		if len(matches) == 0 {
			continue
		}
		if err := res.AddDocid(ld); err != nil {
			return nil, err
		}
		if out != doclist.Positions {
			continue
		}
		for _, p := range matches {
			if err := res.AddPosition(p.Column, p.Pos); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// adjacent appends to dst every position of right that lies distance after
// a position of left in the same column. Both inputs are sorted by
// (column, pos).
func adjacent(left, right []doclist.Position, distance uint32, dst []doclist.Position) []doclist.Position {
	i := 0
	for _, q := range right {
		if q.Pos < distance {
			continue
		}
		want := doclist.Position{Column: q.Column, Pos: q.Pos - distance}
		for i < len(left) && before(left[i], want) {
			i++
		}
		if i < len(left) && left[i].Column == want.Column && left[i].Pos == want.Pos {
			dst = append(dst, doclist.Position{Column: q.Column, Pos: q.Pos})
		}
	}
	return dst
}

func before(a, b doclist.Position) bool {
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	return a.Pos < b.Pos
}

func readList(r *doclist.Reader, dst []doclist.Position) ([]doclist.Position, error) {
	if _, err := r.ReadDocid(); err != nil {
		return dst, err
	}
	for {
		p, ok, err := r.ReadPosition()
		if err != nil || !ok {
			return dst, err
		}
		dst = append(dst, p)
	}
}

func skipBoth(l, r *doclist.Reader) error {
	if err := l.SkipDocument(); err != nil {
		return err
	}
	return r.SkipDocument()
}

func drain(out *doclist.DocList, r *doclist.Reader) error {
	for !r.AtEnd() {
		docid, err := r.ReadDocid()
		if err != nil {
			return err
		}
		if err := r.SkipPositionList(); err != nil {
			return err
		}
		if err := out.AddDocid(docid); err != nil {
			return err
		}
	}
	return nil
}

// Docids returns the docids of d as a Docids doclist.
func Docids(d *doclist.DocList) (*doclist.DocList, error) {
	if d != nil && d.Variant() == doclist.Docids {
		return d.Clone(), nil
	}
	out := doclist.New(doclist.Docids)
	if err := drain(out, doclist.NewReader(d)); err != nil {
		return nil, err
	}
	return out, nil
}
