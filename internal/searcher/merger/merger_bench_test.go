package merger

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
)

// benchList builds a PositionsOffsets list holding every step-th docid below
// n, each with a single occurrence at position pos.
func benchList(b *testing.B, n, step int, pos uint32) *doclist.DocList {
	b.Helper()
	records := make([]doclist.Record, 0, n/step)
	for id := 0; id < n; id += step {
		records = append(records, doclist.Record{
			Docid:     uint64(id),
			Positions: []doclist.Position{{Column: 0, Pos: pos, Start: pos * 6, End: pos*6 + 5}},
		})
	}
	d, err := doclist.Encode(doclist.PositionsOffsets, records)
	if err != nil {
		b.Fatal(err)
	}
	return d
}

func BenchmarkMerge(b *testing.B) {
	left := benchList(b, 100000, 2, 0)
	right := benchList(b, 100000, 3, 1)
	merges := map[string]func(l, r *doclist.DocList) (*doclist.DocList, error){
		"and":    And,
		"or":     Or,
		"except": Except,
		"phrase": func(l, r *doclist.DocList) (*doclist.DocList, error) {
			return Phrase(l, r, doclist.Docids)
		},
	}
	for name, merge := range merges {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(left.Len() + right.Len()))
			for i := 0; i < b.N; i++ {
				if _, err := merge(left, right); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
