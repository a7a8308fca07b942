package doclist

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/varint"
)

// Position is one occurrence of a term inside a document. Start and End are
// only populated for PositionsOffsets doclists.
type Position struct {
	Column uint32
	Pos    uint32
	Start  uint32
	End    uint32
}

// Reader is a forward-only cursor over a DocList. It does not own the
// doclist and must not outlive it.
type Reader struct {
	d          *DocList
	off        int
	inList     bool
	column     uint32
	lastPos    uint32
	lastOffset uint32
}

// NewReader returns a Reader positioned at the first record of d. A nil
// doclist reads as empty.
func NewReader(d *DocList) *Reader {
	if d == nil {
		d = New(Docids)
	}
	return &Reader{d: d}
}

// AtEnd reports whether every record has been consumed.
func (r *Reader) AtEnd() bool {
	return r.off >= len(r.d.data)
}

// Offset returns the byte offset of the next unread byte.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) varint() (uint64, error) {
	v, n, err := varint.Get(r.d.data[r.off:])
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d: %w", ErrCorrupt, r.off, err)
	}
	r.off += n
	return v, nil
}

// PeekDocid returns the next docid without consuming it.
func (r *Reader) PeekDocid() (uint64, error) {
	if r.inList {
		return 0, ErrReaderState
	}
	if r.AtEnd() {
		return 0, fmt.Errorf("%w: read past end", ErrCorrupt)
	}
	v, _, err := varint.Get(r.d.data[r.off:])
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d: %w", ErrCorrupt, r.off, err)
	}
	return v, nil
}

// ReadDocid consumes the next docid. For position variants the reader then
// sits at the start of that record's position list.
func (r *Reader) ReadDocid() (uint64, error) {
	if r.inList {
		return 0, ErrReaderState
	}
	if r.AtEnd() {
		return 0, fmt.Errorf("%w: read past end", ErrCorrupt)
	}
	docid, err := r.varint()
	if err != nil {
		return 0, err
	}
	if r.d.variant.HasPositions() {
		r.inList = true
		r.column = 0
		r.lastPos = 0
		r.lastOffset = 0
	}
	return docid, nil
}

// ReadPosition returns the next position of the current record. It returns
// false exactly once, when the terminator is consumed, and whenever the
// reader is not inside a position list.
func (r *Reader) ReadPosition() (Position, bool, error) {
	if !r.inList {
		return Position{}, false, nil
	}
	if r.AtEnd() {
		return Position{}, false, fmt.Errorf("%w: unterminated position list", ErrCorrupt)
	}
	raw, err := r.varint()
	if err != nil {
		return Position{}, false, err
	}
	if raw == PosEnd {
		r.inList = false
		return Position{}, false, nil
	}
	if raw == PosColumn {
		col, err := r.varint()
		if err != nil {
			return Position{}, false, err
		}
		if col > math.MaxUint32 || col <= uint64(r.column) {
			return Position{}, false, fmt.Errorf("%w: bad column marker %d after %d", ErrCorrupt, col, r.column)
		}
		r.column = uint32(col)
		r.lastPos = 0
		r.lastOffset = 0
		if raw, err = r.varint(); err != nil {
			return Position{}, false, err
		}
		if raw < PosBase {
			return Position{}, false, fmt.Errorf("%w: empty column %d", ErrCorrupt, col)
		}
	}
	pos := uint64(r.lastPos) + raw - PosBase
	if pos > math.MaxUint32 {
		return Position{}, false, fmt.Errorf("%w: position overflow", ErrCorrupt)
	}
	p := Position{Column: r.column, Pos: uint32(pos)}
	r.lastPos = p.Pos
	if r.d.variant.HasOffsets() {
		startDelta, err := r.varint()
		if err != nil {
			return Position{}, false, err
		}
		length, err := r.varint()
		if err != nil {
			return Position{}, false, err
		}
		start := uint64(r.lastOffset) + startDelta
		end := start + length
		if end > math.MaxUint32 {
			return Position{}, false, fmt.Errorf("%w: offset overflow", ErrCorrupt)
		}
		p.Start, p.End = uint32(start), uint32(end)
		r.lastOffset = p.Start
	}
	return p, true, nil
}

// SkipPositionList drains the current position list, if any.
func (r *Reader) SkipPositionList() error {
	for r.inList {
		if _, _, err := r.ReadPosition(); err != nil {
			return err
		}
	}
	return nil
}

// SkipDocument consumes one whole record.
func (r *Reader) SkipDocument() error {
	if _, err := r.ReadDocid(); err != nil {
		return err
	}
	return r.SkipPositionList()
}

// SkipToDocid skips every record whose docid is below target. It reports
// whether the next record has exactly that docid; a match is not consumed.
func (r *Reader) SkipToDocid(target uint64) (bool, error) {
	for !r.AtEnd() {
		docid, err := r.PeekDocid()
		if err != nil {
			return false, err
		}
		if docid >= target {
			return docid == target, nil
		}
		if err := r.SkipDocument(); err != nil {
			return false, err
		}
	}
	return false, nil
}

// readPositions collects the remaining positions of the current record.
func (r *Reader) readPositions(dst []Position) ([]Position, error) {
	for {
		p, ok, err := r.ReadPosition()
		if err != nil {
			return dst, err
		}
		if !ok {
			return dst, nil
		}
		dst = append(dst, p)
	}
}
