// Package validator checks document events before they are published or
// applied, returning per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
)

const (
	maxColumns      = 64
	maxColumnLength = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateEvent checks the op and, for writes carrying text, the columns.
func ValidateEvent(ev *ingestion.DocumentEvent) error {
	errs := make(map[string]string)

	switch ev.Op {
	case ingestion.OpInsert, ingestion.OpUpdate, ingestion.OpPut:
		if len(ev.Columns) == 0 {
			errs["columns"] = "at least one column is required"
		} else if len(ev.Columns) > maxColumns {
			errs["columns"] = fmt.Sprintf("at most %d columns are allowed", maxColumns)
		}
		for i, col := range ev.Columns {
			if len(col) > maxColumnLength {
				errs[fmt.Sprintf("columns[%d]", i)] = fmt.Sprintf("column must be at most %d bytes", maxColumnLength)
			}
		}
	case ingestion.OpDelete:
	case "":
		errs["op"] = "op is required"
	default:
		errs["op"] = fmt.Sprintf("unknown op %q", ev.Op)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
