package doclist

import (
	"fmt"
	"strings"
)

// Record is the decoded form of one doclist entry.
type Record struct {
	Docid     uint64
	Positions []Position
}

// Encode builds a doclist of variant v from records. Positions are ignored
// for Docids doclists and offsets are ignored for Positions doclists.
func Encode(v Variant, records []Record) (*DocList, error) {
	d := New(v)
	for _, rec := range records {
		if err := d.AddDocid(rec.Docid); err != nil {
			return nil, err
		}
		for _, p := range rec.Positions {
			var err error
			switch v {
			case Positions:
				err = d.AddPosition(p.Column, p.Pos)
			case PositionsOffsets:
				err = d.AddPositionOffsets(p.Column, p.Pos, p.Start, p.End)
			}
			if err != nil {
				return nil, fmt.Errorf("docid %d: %w", rec.Docid, err)
			}
		}
	}
	return d, nil
}

// Decode reads every record of d.
func Decode(d *DocList) ([]Record, error) {
	var records []Record
	r := NewReader(d)
	for !r.AtEnd() {
		docid, err := r.ReadDocid()
		if err != nil {
			return nil, err
		}
		rec := Record{Docid: docid}
		if rec.Positions, err = r.readPositions(nil); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DocidsOf returns the docids of d in order.
func DocidsOf(d *DocList) ([]uint64, error) {
	var ids []uint64
	r := NewReader(d)
	for !r.AtEnd() {
		docid, err := r.ReadDocid()
		if err != nil {
			return nil, err
		}
		if err := r.SkipPositionList(); err != nil {
			return nil, err
		}
		ids = append(ids, docid)
	}
	return ids, nil
}

// String renders d as "docid(col:pos ...)" records for debugging.
func (d *DocList) String() string {
	records, err := Decode(d)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", d.variant, err)
	}
	var sb strings.Builder
	for i, rec := range records {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", rec.Docid)
		if !d.variant.HasPositions() {
			continue
		}
		sb.WriteByte('(')
		for j, p := range rec.Positions {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d:%d", p.Column, p.Pos)
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
