package tokenizer

import (
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Full-text engines keep an inverted index that maps every term to the
        documents containing it, along with the column and word position of each
        occurrence. Boolean queries merge those postings lists, and phrase queries
        additionally require adjacent positions within a single column.`,
	"long": strings.Repeat(`Postings are delta encoded with variable length integers so that
        dense lists stay small. Each term owns a stack of segments; small writes land
        in segment zero and are folded into higher segments once the chunk grows past
        its limit, much like carrying digits in a binary counter. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			tok := NewSimple(Options{})
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(tok, text)
			}
		})
	}
}

func BenchmarkTokenizeStopWords(b *testing.B) {
	tok := NewSimple(Options{StopWords: true})
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(tok, text)
	}
}

// BenchmarkCursor walks tokens without collecting them.
func BenchmarkCursor(b *testing.B) {
	tok := NewSimple(Options{})
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		c := tok.Open(text)
		for {
			if _, ok := c.Next(); !ok {
				break
			}
		}
		_ = c.Close()
	}
}
