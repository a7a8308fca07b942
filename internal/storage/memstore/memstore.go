// Package memstore keeps the term and content tables in process memory. It
// backs tests and the single-process CLI mode.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage"
)

type row struct {
	term    string
	segment int
	data    []byte
}

// TermStore is an in-memory storage.TermStore. Safe for concurrent use.
// Stored bytes are copied in both directions.
type TermStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*row
	byTerm map[string]map[int]int64
}

// NewTermStore returns an empty term store.
func NewTermStore() *TermStore {
	return &TermStore{
		rows:   make(map[int64]*row),
		byTerm: make(map[string]map[int]int64),
	}
}

func (s *TermStore) SelectSegment(_ context.Context, term string, segment int) (storage.Row, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTerm[term][segment]
	if !ok {
		return storage.Row{}, false, nil
	}
	return s.rowLocked(id), true, nil
}

func (s *TermStore) SelectAll(_ context.Context, term string) ([]storage.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segs := s.byTerm[term]
	out := make([]storage.Row, 0, len(segs))
	for _, id := range segs {
		out = append(out, s.rowLocked(id))
	}
	slices.SortFunc(out, func(a, b storage.Row) int { return a.Segment - b.Segment })
	return out, nil
}

func (s *TermStore) Insert(_ context.Context, term string, segment int, doclist []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segs := s.byTerm[term]
	if segs == nil {
		segs = make(map[int]int64)
		s.byTerm[term] = segs
	}
	if _, taken := segs[segment]; taken {
		return 0, fmt.Errorf("%w: %q segment %d", storage.ErrSegmentExists, term, segment)
	}
	s.nextID++
	s.rows[s.nextID] = &row{term: term, segment: segment, data: slices.Clone(doclist)}
	segs[segment] = s.nextID
	return s.nextID, nil
}

func (s *TermStore) Update(_ context.Context, id int64, doclist []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("%w: row %d", storage.ErrNotFound, id)
	}
	r.data = slices.Clone(doclist)
	return nil
}

func (s *TermStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("%w: row %d", storage.ErrNotFound, id)
	}
	delete(s.rows, id)
	delete(s.byTerm[r.term], r.segment)
	if len(s.byTerm[r.term]) == 0 {
		delete(s.byTerm, r.term)
	}
	return nil
}

// Terms returns every term with at least one stored chunk, sorted.
func (s *TermStore) Terms(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := make([]string, 0, len(s.byTerm))
	for t := range s.byTerm {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms, nil
}

func (s *TermStore) rowLocked(id int64) storage.Row {
	r := s.rows[id]
	return storage.Row{ID: id, Term: r.term, Segment: r.segment, Doclist: slices.Clone(r.data)}
}

// ContentStore is an in-memory storage.ContentStore.
type ContentStore struct {
	mu   sync.RWMutex
	docs map[uint64][]string
}

// NewContentStore returns an empty content store.
func NewContentStore() *ContentStore {
	return &ContentStore{docs: make(map[uint64][]string)}
}

func (s *ContentStore) Put(_ context.Context, docid uint64, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docid] = slices.Clone(columns)
	return nil
}

func (s *ContentStore) Get(_ context.Context, docid uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cols, ok := s.docs[docid]
	if !ok {
		return nil, fmt.Errorf("%w: document %d", storage.ErrNotFound, docid)
	}
	return slices.Clone(cols), nil
}

func (s *ContentStore) Delete(_ context.Context, docid uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docid]; !ok {
		return fmt.Errorf("%w: document %d", storage.ErrNotFound, docid)
	}
	delete(s.docs, docid)
	return nil
}

// Len returns the number of stored documents.
func (s *ContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
