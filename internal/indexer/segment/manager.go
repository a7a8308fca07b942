// Package segment maintains each term's postings as a stack of doclist
// chunks in a storage.TermStore. Segment 0 absorbs every write; when it grows
// past ChunkMax it is merged upward into the first free segment, folding in
// every occupied segment on the way.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
)

const (
	DefaultChunkMax    = 256
	DefaultMaxSegments = 64
)

// ErrCascadeOverflow is returned when consolidation would need a segment at
// or beyond Config.MaxSegments. The store is left untouched.
var ErrCascadeOverflow = errors.New("segment: cascade exceeds segment limit")

// Config controls consolidation. Zero values select the defaults.
type Config struct {
	ChunkMax    int
	MaxSegments int
	// Variant of the stored doclists, PositionsOffsets unless set.
	Variant *doclist.Variant
	Metrics *metrics.Metrics
}

// WriteResult describes where a Write left the term's newest data.
type WriteResult struct {
	Segment  int
	Cascades int
	Bytes    int
	// Dropped is set when the merged chunk held only deletion markers and
	// nothing older remained for them to mask.
	Dropped bool
}

// SegmentInfo summarizes one stored chunk.
type SegmentInfo struct {
	Segment int `json:"segment"`
	Bytes   int `json:"bytes"`
	Docs    int `json:"docs"`
	Deleted int `json:"deleted"`
}

// Manager reads and writes term chunks. Writers must be serialized by the
// caller; readers may run concurrently with each other.
type Manager struct {
	store       storage.TermStore
	chunkMax    int
	maxSegments int
	variant     doclist.Variant
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewManager returns a Manager over store.
func NewManager(store storage.TermStore, cfg Config) *Manager {
	if cfg.ChunkMax <= 0 {
		cfg.ChunkMax = DefaultChunkMax
	}
	if cfg.MaxSegments <= 1 {
		cfg.MaxSegments = DefaultMaxSegments
	}
	v := doclist.PositionsOffsets
	if cfg.Variant != nil {
		v = *cfg.Variant
	}
	return &Manager{
		store:       store,
		chunkMax:    cfg.ChunkMax,
		maxSegments: cfg.MaxSegments,
		variant:     v,
		metrics:     cfg.Metrics,
		logger:      slog.Default().With("component", "segment-manager"),
	}
}

// Variant returns the doclist variant of stored chunks.
func (m *Manager) Variant() doclist.Variant { return m.variant }

// Write overlays rec onto term's segment 0. A record with an empty position
// list deletes its docid; it is kept as a marker so it masks older segments.
func (m *Manager) Write(ctx context.Context, term string, rec *doclist.DocList) (WriteResult, error) {
	if rec.Variant() != m.variant {
		return WriteResult{}, fmt.Errorf("%w: writing %s into %s index", doclist.ErrVariantMismatch, rec.Variant(), m.variant)
	}
	row, ok, err := m.store.SelectSegment(ctx, term, 0)
	if err != nil {
		return WriteResult{}, err
	}
	chunk := doclist.New(m.variant)
	if ok {
		chunk = doclist.FromBytes(m.variant, row.Doclist)
	}
	if err := doclist.Accumulate(chunk, rec); err != nil {
		return WriteResult{}, fmt.Errorf("term %q segment 0: %w", term, err)
	}

	if chunk.Len() <= m.chunkMax {
		if ok {
			err = m.store.Update(ctx, row.ID, chunk.Bytes())
		} else {
			_, err = m.store.Insert(ctx, term, 0, chunk.Bytes())
		}
		if err != nil {
			return WriteResult{}, err
		}
		m.observe(0, chunk.Len())
		return WriteResult{Segment: 0, Bytes: chunk.Len()}, nil
	}
	return m.cascade(ctx, term, chunk, row, ok)
}

// cascade moves an oversized segment-0 chunk to the first free segment above
// 0, merging every occupied segment below it. The destination is chosen
// before anything is mutated so an overflow leaves the store as it was.
func (m *Manager) cascade(ctx context.Context, term string, chunk *doclist.DocList, row0 storage.Row, has0 bool) (WriteResult, error) {
	rows, err := m.store.SelectAll(ctx, term)
	if err != nil {
		return WriteResult{}, err
	}
	bySeg := make(map[int]storage.Row, len(rows))
	top := -1
	for _, r := range rows {
		bySeg[r.Segment] = r
		top = max(top, r.Segment)
	}

	dest := 1
	for ; dest < m.maxSegments; dest++ {
		if _, taken := bySeg[dest]; !taken {
			break
		}
	}
	if dest >= m.maxSegments {
		return WriteResult{}, fmt.Errorf("%w: term %q needs segment %d (limit %d)", ErrCascadeOverflow, term, dest, m.maxSegments)
	}

	for s := 1; s < dest; s++ {
		older := doclist.FromBytes(m.variant, bySeg[s].Doclist)
		if err := doclist.Accumulate(older, chunk); err != nil {
			return WriteResult{}, fmt.Errorf("term %q segment %d: %w", term, s, err)
		}
		chunk = older
	}

	res := WriteResult{Segment: dest, Cascades: dest - 1}
	if dest > top {
		// Nothing older remains, so deletion markers have nothing to mask.
		if chunk, err = doclist.PruneDeleted(chunk); err != nil {
			return WriteResult{}, fmt.Errorf("term %q: %w", term, err)
		}
	}
	if chunk.Empty() {
		res.Dropped = true
	} else if _, err := m.store.Insert(ctx, term, dest, chunk.Bytes()); err != nil {
		return WriteResult{}, err
	}
	res.Bytes = chunk.Len()

	// The merged chunk is in place; the rows it replaced can go.
	if has0 {
		if err := m.store.Delete(ctx, row0.ID); err != nil {
			return WriteResult{}, err
		}
	}
	for s := 1; s < dest; s++ {
		if err := m.store.Delete(ctx, bySeg[s].ID); err != nil {
			return WriteResult{}, err
		}
	}

	m.observe(dest, res.Bytes)
	if m.metrics != nil {
		m.metrics.SegmentCascadesTotal.Add(float64(res.Cascades))
	}
	m.logger.Debug("segment cascade",
		"term", term,
		"segment", dest,
		"merged", res.Cascades,
		"bytes", res.Bytes,
		"dropped", res.Dropped,
	)
	return res, nil
}

func (m *Manager) observe(segment, bytes int) {
	if m.metrics == nil {
		return
	}
	m.metrics.TermWritesTotal.WithLabelValues(strconv.Itoa(segment)).Inc()
	m.metrics.ChunkBytes.Observe(float64(bytes))
}

// SelectAll resolves every segment of term into one doclist. For a docid
// present in several segments the lowest segment wins. Deletion markers are
// kept; callers prune them with doclist.PruneDeleted.
func (m *Manager) SelectAll(ctx context.Context, term string) (*doclist.DocList, error) {
	rows, err := m.store.SelectAll(ctx, term)
	if err != nil {
		return nil, err
	}
	result := doclist.New(m.variant)
	for _, r := range rows {
		older := doclist.FromBytes(m.variant, r.Doclist)
		if err := doclist.Accumulate(older, result); err != nil {
			return nil, fmt.Errorf("term %q segment %d: %w", term, r.Segment, err)
		}
		result = older
	}
	return result, nil
}

// Segments lists the stored chunks of term in segment order.
func (m *Manager) Segments(ctx context.Context, term string) ([]SegmentInfo, error) {
	rows, err := m.store.SelectAll(ctx, term)
	if err != nil {
		return nil, err
	}
	infos := make([]SegmentInfo, 0, len(rows))
	for _, r := range rows {
		info := SegmentInfo{Segment: r.Segment, Bytes: len(r.Doclist)}
		records, err := doclist.Decode(doclist.FromBytes(m.variant, r.Doclist))
		if err != nil {
			return nil, fmt.Errorf("term %q segment %d: %w", term, r.Segment, err)
		}
		for _, rec := range records {
			info.Docs++
			if m.variant.HasPositions() && len(rec.Positions) == 0 {
				info.Deleted++
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}
