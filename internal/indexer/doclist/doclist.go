// Package doclist implements the encoded posting list ("doclist") that backs
// every term of the full-text index, together with a cursor for reading it
// and the splice operations used to overlay newer postings onto older ones.
//
// A doclist is a sequence of records in strictly increasing docid order:
//
//	varint docid
//	position list (Positions and PositionsOffsets variants only):
//	  varint PosColumn, varint column     when the column changes
//	  varint pos-lastPos+PosBase          one per position
//	  varint start-lastStart              PositionsOffsets only
//	  varint end-start                    PositionsOffsets only
//	  varint PosEnd                       terminator
//
// Position and start-offset deltas restart from zero after every column
// marker and at every docid. A record whose position list is empty marks a
// deleted document.
package doclist

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/varint"
)

// Variant selects which fields a doclist's records carry.
type Variant int

const (
	Docids Variant = iota
	Positions
	PositionsOffsets
)

func (v Variant) String() string {
	switch v {
	case Docids:
		return "docids"
	case Positions:
		return "positions"
	case PositionsOffsets:
		return "positions+offsets"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// HasPositions reports whether records carry a position list.
func (v Variant) HasPositions() bool { return v == Positions || v == PositionsOffsets }

// HasOffsets reports whether positions carry start/end byte offsets.
func (v Variant) HasOffsets() bool { return v == PositionsOffsets }

func (v Variant) valid() bool { return v >= Docids && v <= PositionsOffsets }

// Reserved raw values inside a position list.
const (
	PosEnd    = 0
	PosColumn = 1
	PosBase   = 2
)

// MaxSize caps the byte size of a single doclist.
const MaxSize = 1 << 30

var (
	ErrCorrupt         = errors.New("doclist: corrupt data")
	ErrVariantMismatch = errors.New("doclist: operation not valid for variant")
	ErrDocidOrder      = errors.New("doclist: docids must be strictly increasing")
	ErrPositionOrder   = errors.New("doclist: positions out of order")
	ErrOffsetOrder     = errors.New("doclist: offsets out of order")
	ErrNotAppendable   = errors.New("doclist: encoder state unknown, cannot append")
	ErrTooLarge        = errors.New("doclist: size limit exceeded")
	ErrReaderState     = errors.New("doclist: reader is inside a position list")
)

// DocList is an owned, append-only encoded posting buffer.
type DocList struct {
	data    []byte
	variant Variant

	// Encoder state, valid only while tailKnown is true.
	tailKnown  bool
	hasDocid   bool
	lastDocid  uint64
	inDoc      bool
	lastColumn uint32
	hasPos     bool
	lastPos    uint32
	lastOffset uint32
}

// New returns an empty doclist of the given variant.
func New(v Variant) *DocList {
	if !v.valid() {
		v = Docids
	}
	return &DocList{variant: v, tailKnown: true}
}

// FromBytes returns a doclist holding a copy of b. The result can be read,
// spliced and accumulated into, but not appended to unless b is empty.
func FromBytes(v Variant, b []byte) *DocList {
	d := New(v)
	if len(b) > 0 {
		d.data = append([]byte(nil), b...)
		d.tailKnown = false
	}
	return d
}

// Bytes returns the encoded data. The slice aliases the doclist's buffer.
func (d *DocList) Bytes() []byte { return d.data }

// Len returns the encoded size in bytes.
func (d *DocList) Len() int { return len(d.data) }

// Variant returns the record shape of d.
func (d *DocList) Variant() Variant { return d.variant }

// Empty reports whether d holds no records.
func (d *DocList) Empty() bool { return len(d.data) == 0 }

// Clone returns a deep copy of d, including encoder state.
func (d *DocList) Clone() *DocList {
	c := *d
	c.data = append([]byte(nil), d.data...)
	return &c
}

// Release drops the buffer. The doclist is empty and appendable afterwards.
func (d *DocList) Release() {
	*d = DocList{variant: d.variant, tailKnown: true}
}

func (d *DocList) appendVarint(v uint64) error {
	if len(d.data)+varint.Len(v) > MaxSize {
		return ErrTooLarge
	}
	d.data = varint.Append(d.data, v)
	return nil
}

// AddDocid starts a new record. For position variants the record begins
// with an empty position list.
func (d *DocList) AddDocid(docid uint64) error {
	if !d.tailKnown {
		return ErrNotAppendable
	}
	if d.hasDocid && docid <= d.lastDocid {
		return fmt.Errorf("%w: %d after %d", ErrDocidOrder, docid, d.lastDocid)
	}
	n := varint.Len(docid)
	if d.variant.HasPositions() {
		n++
	}
	if len(d.data)+n > MaxSize {
		return ErrTooLarge
	}
	d.data = varint.Append(d.data, docid)
	if d.variant.HasPositions() {
		d.data = append(d.data, PosEnd)
	}
	d.hasDocid = true
	d.lastDocid = docid
	d.inDoc = d.variant.HasPositions()
	d.lastColumn = 0
	d.hasPos = false
	d.lastPos = 0
	d.lastOffset = 0
	return nil
}

// AddPosition appends a position to the current record of a Positions
// doclist.
func (d *DocList) AddPosition(column, pos uint32) error {
	if d.variant != Positions {
		return fmt.Errorf("%w: AddPosition on %s", ErrVariantMismatch, d.variant)
	}
	return d.addPos(column, pos, 0, 0)
}

// AddPositionOffsets appends a position with its byte offsets to the
// current record of a PositionsOffsets doclist.
func (d *DocList) AddPositionOffsets(column, pos, start, end uint32) error {
	if d.variant != PositionsOffsets {
		return fmt.Errorf("%w: AddPositionOffsets on %s", ErrVariantMismatch, d.variant)
	}
	return d.addPos(column, pos, start, end)
}

func (d *DocList) addPos(column, pos, start, end uint32) error {
	if !d.tailKnown {
		return ErrNotAppendable
	}
	if !d.inDoc {
		return fmt.Errorf("%w: no open record", ErrVariantMismatch)
	}
	newColumn := column != d.lastColumn
	switch {
	case column < d.lastColumn:
		return fmt.Errorf("%w: column %d after %d", ErrPositionOrder, column, d.lastColumn)
	case !newColumn && d.hasPos && pos <= d.lastPos:
		return fmt.Errorf("%w: position %d after %d", ErrPositionOrder, pos, d.lastPos)
	}
	lastOffset := d.lastOffset
	if newColumn {
		lastOffset = 0
	}
	if d.variant.HasOffsets() {
		if end < start {
			return fmt.Errorf("%w: end %d before start %d", ErrOffsetOrder, end, start)
		}
		if start < lastOffset {
			return fmt.Errorf("%w: start %d after %d", ErrOffsetOrder, start, lastOffset)
		}
	}

	// Drop the terminator, write the entry, then terminate again. On any
	// failure the buffer is restored to its previous valid form.
	mark := len(d.data)
	d.data = d.data[:mark-1]
	lastPos := d.lastPos
	if newColumn {
		lastPos = 0
	}
	err := d.writeEntry(newColumn, column, pos-lastPos, start-lastOffset, end-start)
	if err != nil {
		d.data = append(d.data[:mark-1], PosEnd)
		return err
	}
	d.lastColumn = column
	d.hasPos = true
	d.lastPos = pos
	if d.variant.HasOffsets() {
		d.lastOffset = start
	}
	return nil
}

func (d *DocList) writeEntry(newColumn bool, column, posDelta, startDelta, length uint32) error {
	if newColumn {
		if err := d.appendVarint(PosColumn); err != nil {
			return err
		}
		if err := d.appendVarint(uint64(column)); err != nil {
			return err
		}
	}
	if err := d.appendVarint(uint64(posDelta) + PosBase); err != nil {
		return err
	}
	if d.variant.HasOffsets() {
		if err := d.appendVarint(uint64(startDelta)); err != nil {
			return err
		}
		if err := d.appendVarint(uint64(length)); err != nil {
			return err
		}
	}
	return d.appendVarint(PosEnd)
}
