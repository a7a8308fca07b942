// Package executor evaluates parsed queries against the index with the
// doclist merge operators.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/tracing"
)

// TermSource resolves a term to its live postings: every segment merged and
// deleted documents removed. Unknown terms resolve to an empty doclist.
type TermSource interface {
	TermDoclist(ctx context.Context, term string) (*doclist.DocList, error)
}

// Executor evaluates queries. It holds no per-query state and is safe for
// concurrent use when its source is.
type Executor struct {
	source TermSource
	logger *slog.Logger
}

func New(source TermSource) *Executor {
	return &Executor{
		source: source,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute returns the docids matching q in increasing order. Consecutive
// OR-joined units form one group, groups are AND-ed from left to right, and
// every negated unit is then subtracted. A query of only negated units fails
// with parser.ErrOnlyNot before any term is read.
func (e *Executor) Execute(ctx context.Context, q *parser.Query) (*doclist.DocList, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("component", "query-executor")

	var (
		result *doclist.DocList
		group  *doclist.DocList
		nots   []parser.Unit
	)
	closeGroup := func() error {
		if group == nil {
			return nil
		}
		if result == nil {
			result = group
		} else {
			merged, err := merger.And(result, group)
			if err != nil {
				return err
			}
			result = merged
		}
		group = nil
		return nil
	}

	for _, u := range q.Units() {
		if u.IsNot {
			nots = append(nots, u)
			continue
		}
		d, err := e.unit(ctx, u)
		if err != nil {
			return nil, err
		}
		if u.IsOr && group != nil {
			if group, err = merger.Or(group, d); err != nil {
				return nil, err
			}
			continue
		}
		if err := closeGroup(); err != nil {
			return nil, err
		}
		group = d
	}
	if err := closeGroup(); err != nil {
		return nil, err
	}
	if result == nil {
		return doclist.New(doclist.Docids), nil
	}

	for _, u := range nots {
		if result.Empty() {
			break
		}
		d, err := e.unit(ctx, u)
		if err != nil {
			return nil, err
		}
		if result, err = merger.Except(result, d); err != nil {
			return nil, err
		}
	}

	out, err := merger.Docids(result)
	if err != nil {
		return nil, err
	}
	log.Debug("query evaluated", "query", q.String(), "units", len(q.Units()), "bytes", out.Len())
	return out, nil
}

// unit resolves a single term or a phrase. Phrases chain PhraseAt merges,
// keeping positions until the last word.
func (e *Executor) unit(ctx context.Context, u parser.Unit) (d *doclist.DocList, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartChild(ctx, "unit")
	span.SetAttr("terms", u.Terms)
	defer func() {
		if d != nil {
			span.SetAttr("bytes", d.Len())
		}
		span.End()
	}()

	left, err := e.term(ctx, u.Terms[0])
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(u.Terms); i++ {
		if left.Empty() {
			return doclist.New(doclist.Docids), nil
		}
		right, err := e.term(ctx, u.Terms[i])
		if err != nil {
			return nil, err
		}
		out := doclist.Positions
		if i == len(u.Terms)-1 {
			out = doclist.Docids
		}
		if left, err = merger.PhraseAt(left, right, u.Distance(i), out); err != nil {
			return nil, fmt.Errorf("phrase %q: %w", u.Terms, err)
		}
	}
	return left, nil
}

func (e *Executor) term(ctx context.Context, term string) (*doclist.DocList, error) {
	d, err := e.source.TermDoclist(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("loading term %q: %w", term, err)
	}
	return d, nil
}
