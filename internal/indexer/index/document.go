// Package index turns a document's columns into per-term posting records
// ready to be written through the segment manager.
package index

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/tokenizer"
)

var (
	ErrNegativePosition = errors.New("index: tokenizer returned a negative position or offset")
	ErrPositionRange    = errors.New("index: position or offset exceeds 32 bits")
)

// Document holds one single-record doclist per distinct term of a document.
type Document struct {
	Docid uint64
	Terms map[string]*doclist.DocList
}

// Build tokenizes every column (the column index is its position in
// columns) and records each term occurrence with its byte offsets.
func Build(tok tokenizer.Tokenizer, docid uint64, columns []string) (*Document, error) {
	doc := &Document{Docid: docid, Terms: make(map[string]*doclist.DocList)}
	for col, text := range columns {
		if err := doc.addColumn(tok, uint32(col), text); err != nil {
			return nil, fmt.Errorf("docid %d column %d: %w", docid, col, err)
		}
	}
	return doc, nil
}

func (d *Document) addColumn(tok tokenizer.Tokenizer, col uint32, text string) error {
	c := tok.Open(text)
	defer c.Close()
	for {
		t, ok := c.Next()
		if !ok {
			return nil
		}
		if t.Position < 0 || t.Start < 0 || t.End < 0 {
			return fmt.Errorf("%w: %q at %d [%d,%d)", ErrNegativePosition, t.Term, t.Position, t.Start, t.End)
		}
		if int64(t.Position) > math.MaxUint32 || int64(t.End) > math.MaxUint32 {
			return fmt.Errorf("%w: %q at %d", ErrPositionRange, t.Term, t.Position)
		}
		dl, err := d.record(t.Term)
		if err != nil {
			return err
		}
		if err := dl.AddPositionOffsets(col, uint32(t.Position), uint32(t.Start), uint32(t.End)); err != nil {
			return fmt.Errorf("term %q: %w", t.Term, err)
		}
	}
}

func (d *Document) record(term string) (*doclist.DocList, error) {
	if dl, ok := d.Terms[term]; ok {
		return dl, nil
	}
	dl := doclist.New(doclist.PositionsOffsets)
	if err := dl.AddDocid(d.Docid); err != nil {
		return nil, err
	}
	d.Terms[term] = dl
	return dl, nil
}

// SortedTerms returns the document's terms in byte order, the order in which
// they are written to the index.
func (d *Document) SortedTerms() []string {
	return slices.Sorted(maps.Keys(d.Terms))
}

// Deletion returns a document carrying a deletion marker for each of terms.
func Deletion(docid uint64, terms []string) (*Document, error) {
	doc := &Document{Docid: docid, Terms: make(map[string]*doclist.DocList, len(terms))}
	for _, term := range terms {
		if _, err := doc.record(term); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Replace returns the writes that turn old into updated: every term of
// updated with its new record, plus a deletion marker for every term that
// only old contains.
func Replace(old, updated *Document) (*Document, error) {
	if old.Docid != updated.Docid {
		return nil, fmt.Errorf("index: replacing docid %d with %d", old.Docid, updated.Docid)
	}
	out := &Document{Docid: updated.Docid, Terms: maps.Clone(updated.Terms)}
	for term := range old.Terms {
		if _, ok := out.Terms[term]; ok {
			continue
		}
		if _, err := out.record(term); err != nil {
			return nil, err
		}
	}
	return out, nil
}
