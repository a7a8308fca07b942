// Package indexer ties the index together: documents are tokenized into
// per-term records, written through the segment manager, and searched with
// the query executor.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
)

// Engine is a full-text index over a term store and a content store.
// Writes are serialized internally; searches run concurrently with each
// other and with writes, seeing each term as of its last completed write.
type Engine struct {
	segments  *segment.Manager
	content   storage.ContentStore
	tokenizer tokenizer.Tokenizer
	executor  *executor.Executor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	writeMu   sync.Mutex
}

type Option func(*Engine)

// WithTokenizer replaces the default tokenizer, which is built from the
// StopWords setting of the indexer config.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(e *Engine) { e.tokenizer = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(cfg config.IndexerConfig, terms storage.TermStore, content storage.ContentStore, opts ...Option) *Engine {
	e := &Engine{
		content:   content,
		tokenizer: tokenizer.NewSimple(tokenizer.Options{StopWords: cfg.StopWords}),
		logger:    logger.WithComponent("indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.segments = segment.NewManager(terms, segment.Config{
		ChunkMax:    cfg.ChunkMax,
		MaxSegments: cfg.MaxSegments,
		Metrics:     e.metrics,
	})
	e.executor = executor.New(e)
	return e
}

// Insert indexes a new document. Column i of the document is columns[i].
// An existing docid fails with apperrors.ErrDocumentExists.
func (e *Engine) Insert(ctx context.Context, docid uint64, columns ...string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, err := e.content.Get(ctx, docid); err == nil {
		return fmt.Errorf("insert docid %d: %w", docid, apperrors.ErrDocumentExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("insert docid %d: reading content: %w", docid, err)
	}
	doc, err := index.Build(e.tokenizer, docid, columns)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := e.content.Put(ctx, docid, columns); err != nil {
		return fmt.Errorf("insert docid %d: storing content: %w", docid, err)
	}
	if err := e.writeTerms(ctx, doc); err != nil {
		return fmt.Errorf("insert docid %d: %w", docid, err)
	}
	e.count("insert")
	e.logger.Debug("document inserted", "docid", docid, "terms", len(doc.Terms))
	return nil
}

// Delete removes a document from the index. An unknown docid fails with an
// error matching both storage.ErrNotFound and apperrors.ErrDocumentNotFound.
func (e *Engine) Delete(ctx context.Context, docid uint64) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	old, err := e.stored(ctx, docid)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	del, err := index.Deletion(docid, old.SortedTerms())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := e.writeTerms(ctx, del); err != nil {
		return fmt.Errorf("delete docid %d: %w", docid, err)
	}
	if err := e.content.Delete(ctx, docid); err != nil {
		return fmt.Errorf("delete docid %d: removing content: %w", docid, err)
	}
	e.count("delete")
	e.logger.Debug("document deleted", "docid", docid, "terms", len(del.Terms))
	return nil
}

// Update replaces the columns of an existing document.
func (e *Engine) Update(ctx context.Context, docid uint64, columns ...string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	old, err := e.stored(ctx, docid)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return e.replace(ctx, old, columns)
}

// Put inserts docid, or updates it when it is already indexed.
func (e *Engine) Put(ctx context.Context, docid uint64, columns ...string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	old, err := e.stored(ctx, docid)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		old = &index.Document{Docid: docid}
	case err != nil:
		return fmt.Errorf("put: %w", err)
	}
	return e.replace(ctx, old, columns)
}

func (e *Engine) replace(ctx context.Context, old *index.Document, columns []string) error {
	docid := old.Docid
	updated, err := index.Build(e.tokenizer, docid, columns)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	writes, err := index.Replace(old, updated)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if err := e.writeTerms(ctx, writes); err != nil {
		return fmt.Errorf("update docid %d: %w", docid, err)
	}
	if err := e.content.Put(ctx, docid, columns); err != nil {
		return fmt.Errorf("update docid %d: storing content: %w", docid, err)
	}
	e.count("update")
	e.logger.Debug("document updated", "docid", docid, "terms", len(writes.Terms))
	return nil
}

// stored rebuilds the indexed form of docid from its stored columns.
func (e *Engine) stored(ctx context.Context, docid uint64) (*index.Document, error) {
	columns, err := e.content.Get(ctx, docid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("docid %d: %w: %w", docid, apperrors.ErrDocumentNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("docid %d: reading content: %w", docid, err)
	}
	return index.Build(e.tokenizer, docid, columns)
}

// writeTerms applies every record of doc in term order. A failure part way
// leaves the earlier terms written; rewriting the same document repairs it.
func (e *Engine) writeTerms(ctx context.Context, doc *index.Document) error {
	for _, term := range doc.SortedTerms() {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.segments.Write(ctx, term, doc.Terms[term])
		if err != nil {
			return fmt.Errorf("term %q: %w", term, err)
		}
		if res.Segment > 0 {
			e.logger.Debug("term consolidated",
				"term", term,
				"segment", res.Segment,
				"bytes", res.Bytes,
				"dropped", res.Dropped,
			)
		}
	}
	return nil
}

func (e *Engine) count(op string) {
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.WithLabelValues(op).Inc()
	}
}

// TermDoclist returns the live postings of term: every segment merged and
// deleted documents removed.
func (e *Engine) TermDoclist(ctx context.Context, term string) (*doclist.DocList, error) {
	all, err := e.segments.SelectAll(ctx, term)
	if err != nil {
		return nil, err
	}
	return doclist.PruneDeleted(all)
}

// Parse parses query with the engine's tokenizer. Syntax errors match
// apperrors.ErrInvalidQuery as well as the parser sentinel.
func (e *Engine) Parse(query string) (*parser.Query, error) {
	q, err := parser.Parse(e.tokenizer, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidQuery, err)
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidQuery, err)
	}
	return q, nil
}

// Execute evaluates an already parsed query.
func (e *Engine) Execute(ctx context.Context, q *parser.Query) (*doclist.DocList, error) {
	res, err := e.executor.Execute(ctx, q)
	if errors.Is(err, parser.ErrOnlyNot) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidQuery, err)
	}
	if errors.Is(err, doclist.ErrCorrupt) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptIndex, err)
	}
	return res, err
}

// Search parses and evaluates query.
func (e *Engine) Search(ctx context.Context, query string) (*Results, error) {
	q, err := e.Parse(query)
	if err != nil {
		return nil, err
	}
	d, err := e.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return NewResults(d), nil
}

// Document returns the stored columns of docid.
func (e *Engine) Document(ctx context.Context, docid uint64) ([]string, error) {
	columns, err := e.content.Get(ctx, docid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("docid %d: %w: %w", docid, apperrors.ErrDocumentNotFound, err)
	}
	return columns, err
}

// Segments describes the stored chunks of term.
func (e *Engine) Segments(ctx context.Context, term string) ([]segment.SegmentInfo, error) {
	return e.segments.Segments(ctx, term)
}

// Tokenizer returns the tokenizer used for documents and queries.
func (e *Engine) Tokenizer() tokenizer.Tokenizer { return e.tokenizer }
