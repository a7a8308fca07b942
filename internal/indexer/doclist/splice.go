package doclist

import (
	"fmt"
	"slices"
)

// splice replaces data[start:end] with src. Only the tail after end moves.
func (d *DocList) splice(start, end int, src []byte) error {
	if len(d.data)-(end-start)+len(src) > MaxSize {
		return ErrTooLarge
	}
	d.data = slices.Replace(d.data, start, end, src...)
	d.tailKnown = len(d.data) == 0
	if d.tailKnown {
		*d = DocList{variant: d.variant, tailKnown: true}
	}
	return nil
}

// spliceRecord places the encoded record src for docid into r's doclist,
// replacing an existing record with the same docid. r is left just past
// the spliced record, so records must be spliced in increasing docid order.
func spliceRecord(r *Reader, docid uint64, src []byte) error {
	found, err := r.SkipToDocid(docid)
	if err != nil {
		return err
	}
	start := r.off
	if found {
		if err := r.SkipDocument(); err != nil {
			return err
		}
	}
	if err := r.d.splice(start, r.off, src); err != nil {
		return err
	}
	r.off = start + len(src)
	r.inList = false
	return nil
}

// Accumulate overlays every record of upd onto acc. For docids present in
// both, upd's record replaces acc's; the rest of acc is kept. A record with
// an empty position list is carried over like any other, so deletions in
// upd mask older data in acc.
func Accumulate(acc, upd *DocList) error {
	if upd == nil || upd.Empty() || acc == upd {
		return nil
	}
	if acc.variant != upd.variant {
		return fmt.Errorf("%w: accumulate %s into %s", ErrVariantMismatch, upd.variant, acc.variant)
	}
	if acc.Empty() {
		if len(upd.data) > MaxSize {
			return ErrTooLarge
		}
		acc.data = append(acc.data[:0], upd.data...)
		acc.tailKnown = false
		return nil
	}

	accReader := NewReader(acc)
	updReader := NewReader(upd)
	for !updReader.AtEnd() {
		start := updReader.off
		docid, err := updReader.ReadDocid()
		if err != nil {
			return err
		}
		if err := updReader.SkipPositionList(); err != nil {
			return err
		}
		if err := spliceRecord(accReader, docid, upd.data[start:updReader.off]); err != nil {
			return err
		}
	}
	return nil
}

// PruneDeleted returns a copy of d without records whose position list is
// empty. Docids doclists carry no deletion markers and are cloned as is.
func PruneDeleted(d *DocList) (*DocList, error) {
	if !d.variant.HasPositions() {
		return d.Clone(), nil
	}
	out := New(d.variant)
	r := NewReader(d)
	for !r.AtEnd() {
		start := r.off
		if _, err := r.ReadDocid(); err != nil {
			return nil, err
		}
		_, ok, err := r.ReadPosition()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := r.SkipPositionList(); err != nil {
			return nil, err
		}
		out.data = append(out.data, d.data[start:r.off]...)
	}
	out.tailKnown = out.Empty()
	return out, nil
}
