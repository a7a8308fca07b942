package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/memstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
)

var benchWords = []string{
	"search", "engine", "index", "query", "segment", "phrase", "column",
	"docid", "posting", "merge", "varint", "chunk", "term", "token",
}

func benchDocument(i int) string {
	return fmt.Sprintf("%s %s %s %s document %d",
		benchWords[i%len(benchWords)],
		benchWords[(i/3)%len(benchWords)],
		benchWords[(i/7)%len(benchWords)],
		benchWords[(i/11)%len(benchWords)],
		i)
}

func loadedEngine(b *testing.B, docs int) *Engine {
	b.Helper()
	e := NewEngine(config.IndexerConfig{ChunkMax: 256, MaxSegments: 64}, memstore.NewTermStore(), memstore.NewContentStore())
	ctx := context.Background()
	for i := 0; i < docs; i++ {
		if err := e.Insert(ctx, uint64(i), benchDocument(i), "benchmark corpus"); err != nil {
			b.Fatal(err)
		}
	}
	return e
}

// BenchmarkEngineInsert measures indexing throughput at several corpus
// sizes, which exercises segment cascades as chunks grow.
func BenchmarkEngineInsert(b *testing.B) {
	for _, preload := range []int{0, 1000, 10000} {
		b.Run(fmt.Sprintf("preload-%d", preload), func(b *testing.B) {
			e := loadedEngine(b, preload)
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				docid := uint64(preload + i)
				if err := e.Insert(ctx, docid, benchDocument(int(docid))); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEngineSearch(b *testing.B) {
	e := loadedEngine(b, 5000)
	queries := map[string]string{
		"term":   "search",
		"and":    "search engine",
		"or":     "phrase OR varint",
		"not":    "search -engine",
		"phrase": `"benchmark corpus"`,
	}
	ctx := context.Background()
	for name, query := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				res, err := e.Search(ctx, query)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := res.Count(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEngineSearchParallel(b *testing.B) {
	e := loadedEngine(b, 5000)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Search(ctx, "query segment"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
