// Package pgstore persists the term and content tables in PostgreSQL through
// lib/pq. Connection-level failures are retried with backoff; constraint
// violations and other statement errors are returned as is.
package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
)

const uniqueViolation = "23505"

// Tables names the two tables of one index.
type Tables struct {
	Terms   string
	Content string
}

// TablesFor derives the table names from an index name prefix.
func TablesFor(prefix string) Tables {
	return Tables{Terms: prefix + "_terms", Content: prefix + "_content"}
}

// Schema returns the DDL statements creating t. Safe to run repeatedly.
func Schema(t Tables) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id      BIGSERIAL PRIMARY KEY,
	term    TEXT    NOT NULL,
	segment INTEGER NOT NULL,
	doclist BYTEA   NOT NULL,
	UNIQUE (term, segment)
)`, pq.QuoteIdentifier(t.Terms)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	docid   BIGINT PRIMARY KEY,
	columns TEXT[] NOT NULL
)`, pq.QuoteIdentifier(t.Content)),
	}
}

// Migrate creates the tables of t in one transaction if they are missing.
func Migrate(ctx context.Context, c *postgres.Client, t Tables) error {
	err := c.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range Schema(t) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating index tables: %w", err)
	}
	return nil
}

type base struct {
	db     *sql.DB
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// do runs fn under the retry policy. Only transient errors are retried.
func (b *base) do(ctx context.Context, op string, fn func() error) error {
	return resilience.Retry(ctx, op, b.retry, func() error {
		err := fn()
		if err == nil || isTransient(err) {
			return err
		}
		return resilience.Permanent(err)
	})
}

// isTransient reports whether err is worth retrying: broken connections and
// PostgreSQL connection-exception or serialization failures.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "57P01":
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// TermStore implements storage.TermStore on the terms table.
type TermStore struct {
	base
	selectSegment string
	selectAll     string
	insert        string
	update        string
	delete        string
	terms         string
}

// NewTermStore returns a term store on table within db.
func NewTermStore(db *sql.DB, table string, retry resilience.RetryConfig) *TermStore {
	q := pq.QuoteIdentifier(table)
	return &TermStore{
		base: base{
			db:     db,
			retry:  retry,
			logger: slog.Default().With("component", "pgstore", "table", table),
		},
		selectSegment: "SELECT id, doclist FROM " + q + " WHERE term = $1 AND segment = $2",
		selectAll:     "SELECT id, segment, doclist FROM " + q + " WHERE term = $1 ORDER BY segment",
		insert:        "INSERT INTO " + q + " (term, segment, doclist) VALUES ($1, $2, $3) RETURNING id",
		update:        "UPDATE " + q + " SET doclist = $2 WHERE id = $1",
		delete:        "DELETE FROM " + q + " WHERE id = $1",
		terms:         "SELECT DISTINCT term FROM " + q + " ORDER BY term",
	}
}

func (s *TermStore) SelectSegment(ctx context.Context, term string, segment int) (storage.Row, bool, error) {
	row := storage.Row{Term: term, Segment: segment}
	found := false
	err := s.do(ctx, "select-segment", func() error {
		err := s.db.QueryRowContext(ctx, s.selectSegment, term, segment).Scan(&row.ID, &row.Doclist)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			found = false
			return nil
		case err != nil:
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return storage.Row{}, false, fmt.Errorf("selecting %q segment %d: %w", term, segment, err)
	}
	return row, found, nil
}

func (s *TermStore) SelectAll(ctx context.Context, term string) ([]storage.Row, error) {
	var out []storage.Row
	err := s.do(ctx, "select-all", func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, s.selectAll, term)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r := storage.Row{Term: term}
			if err := rows.Scan(&r.ID, &r.Segment, &r.Doclist); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("selecting segments of %q: %w", term, err)
	}
	return out, nil
}

func (s *TermStore) Insert(ctx context.Context, term string, segment int, doclist []byte) (int64, error) {
	var id int64
	err := s.do(ctx, "insert", func() error {
		return s.db.QueryRowContext(ctx, s.insert, term, segment, doclist).Scan(&id)
	})
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %q segment %d", storage.ErrSegmentExists, term, segment)
	}
	if err != nil {
		return 0, fmt.Errorf("inserting %q segment %d: %w", term, segment, err)
	}
	return id, nil
}

func (s *TermStore) Update(ctx context.Context, id int64, doclist []byte) error {
	return s.execOne(ctx, "update", s.update, id, doclist)
}

func (s *TermStore) Delete(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete", s.delete, id)
}

func (s *TermStore) execOne(ctx context.Context, op, query string, args ...any) error {
	var n int64
	err := s.do(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("%s row %v: %w", op, args[0], err)
	}
	if n == 0 {
		return fmt.Errorf("%w: row %v", storage.ErrNotFound, args[0])
	}
	return nil
}

func (s *TermStore) Terms(ctx context.Context) ([]string, error) {
	var terms []string
	err := s.do(ctx, "terms", func() error {
		terms = terms[:0]
		rows, err := s.db.QueryContext(ctx, s.terms)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			terms = append(terms, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	return terms, nil
}

// ContentStore implements storage.ContentStore on the content table. Docids
// are stored as BIGINT by bit pattern, so ids above math.MaxInt64 read back
// unchanged.
type ContentStore struct {
	base
	put    string
	get    string
	delete string
}

// NewContentStore returns a content store on table within db.
func NewContentStore(db *sql.DB, table string, retry resilience.RetryConfig) *ContentStore {
	q := pq.QuoteIdentifier(table)
	return &ContentStore{
		base: base{
			db:     db,
			retry:  retry,
			logger: slog.Default().With("component", "pgstore", "table", table),
		},
		put: "INSERT INTO " + q + " (docid, columns) VALUES ($1, $2) " +
			"ON CONFLICT (docid) DO UPDATE SET columns = EXCLUDED.columns",
		get:    "SELECT columns FROM " + q + " WHERE docid = $1",
		delete: "DELETE FROM " + q + " WHERE docid = $1",
	}
}

func (s *ContentStore) Put(ctx context.Context, docid uint64, columns []string) error {
	err := s.do(ctx, "put-content", func() error {
		_, err := s.db.ExecContext(ctx, s.put, int64(docid), pq.Array(columns))
		return err
	})
	if err != nil {
		return fmt.Errorf("storing document %d: %w", docid, err)
	}
	return nil
}

func (s *ContentStore) Get(ctx context.Context, docid uint64) ([]string, error) {
	var cols []string
	err := s.do(ctx, "get-content", func() error {
		return s.db.QueryRowContext(ctx, s.get, int64(docid)).Scan(pq.Array(&cols))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %d", storage.ErrNotFound, docid)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %d: %w", docid, err)
	}
	if cols == nil {
		cols = []string{}
	}
	return cols, nil
}

func (s *ContentStore) Delete(ctx context.Context, docid uint64) error {
	var n int64
	err := s.do(ctx, "delete-content", func() error {
		res, err := s.db.ExecContext(ctx, s.delete, int64(docid))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", docid, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: document %d", storage.ErrNotFound, docid)
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("document content deleted", "docid", docid)
	}
	return nil
}
