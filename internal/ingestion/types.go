// Package ingestion defines the Kafka event schemas that carry document
// writes to the indexer and cache invalidations to the searchers.
package ingestion

import "time"

// Op is the kind of write a DocumentEvent requests.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// DocumentEvent is the payload of the document-ingest topic. Columns is
// ignored for deletes.
type DocumentEvent struct {
	Op        Op        `json:"op"`
	DocID     uint64    `json:"doc_id"`
	Columns   []string  `json:"columns,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InvalidationEvent is the payload of the cache-invalidate topic, published
// after the indexer applies a write.
type InvalidationEvent struct {
	Op        Op        `json:"op"`
	DocID     uint64    `json:"doc_id"`
	Timestamp time.Time `json:"timestamp"`
}
