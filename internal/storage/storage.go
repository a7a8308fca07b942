// Package storage defines the persistence contracts of the index: a term
// store holding one doclist chunk per (term, segment) and a content store
// holding the original column text of every document.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrSegmentExists = errors.New("storage: segment already exists for term")
)

// Row is one stored chunk of a term's postings.
type Row struct {
	ID      int64
	Term    string
	Segment int
	Doclist []byte
}

// TermStore persists doclist chunks keyed by (term, segment). Segment 0 of a
// term holds its newest postings.
type TermStore interface {
	// SelectSegment returns the chunk at (term, segment). The bool is false
	// when no such row exists.
	SelectSegment(ctx context.Context, term string, segment int) (Row, bool, error)
	// SelectAll returns every chunk of term ordered by increasing segment.
	SelectAll(ctx context.Context, term string) ([]Row, error)
	// Insert stores a new chunk and returns its row id. It fails with
	// ErrSegmentExists when (term, segment) is already taken.
	Insert(ctx context.Context, term string, segment int, doclist []byte) (int64, error)
	Update(ctx context.Context, id int64, doclist []byte) error
	Delete(ctx context.Context, id int64) error
}

// ContentStore persists the columns of each indexed document.
type ContentStore interface {
	// Put inserts or replaces the columns of docid.
	Put(ctx context.Context, docid uint64, columns []string) error
	// Get returns ErrNotFound for an unknown docid.
	Get(ctx context.Context, docid uint64) ([]string, error)
	Delete(ctx context.Context, docid uint64) error
}

// TermLister is implemented by term stores that can enumerate their terms.
type TermLister interface {
	Terms(ctx context.Context) ([]string, error)
}
