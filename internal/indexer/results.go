package indexer

import "github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"

// Results is a forward-only cursor over the docids of a search, in
// increasing order.
type Results struct {
	list   *doclist.DocList
	reader *doclist.Reader
	docid  uint64
	err    error
}

func NewResults(d *doclist.DocList) *Results {
	return &Results{list: d, reader: doclist.NewReader(d)}
}

// Next advances to the next docid. It returns false at the end or on error.
func (r *Results) Next() bool {
	if r.err != nil || r.reader.AtEnd() {
		return false
	}
	docid, err := r.reader.ReadDocid()
	if err == nil {
		err = r.reader.SkipPositionList()
	}
	if err != nil {
		r.err = err
		return false
	}
	r.docid = docid
	return true
}

func (r *Results) Docid() uint64 { return r.docid }

func (r *Results) Err() error { return r.err }

// Collect reads up to limit remaining docids; limit <= 0 reads them all.
func (r *Results) Collect(limit int) ([]uint64, error) {
	ids := []uint64{}
	for (limit <= 0 || len(ids) < limit) && r.Next() {
		ids = append(ids, r.docid)
	}
	return ids, r.err
}

// Count returns the total number of matches regardless of the cursor.
func (r *Results) Count() (int, error) {
	ids, err := doclist.DocidsOf(r.list)
	return len(ids), err
}
