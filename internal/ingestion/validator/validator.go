// Package validator checks corpus records before they enter a build batch
// and reports every failing field of every record at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
)

const (
	maxDocIDLength = 255
	maxTitleLength = 1024
)

// ValidationError holds per-field failure messages keyed "record[i].field".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "invalid records: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

// ValidateRecord checks a single record.
func ValidateRecord(rec ingestion.Record) error {
	return ValidateBatch([]ingestion.Record{rec})
}

// ValidateBatch checks every record and fails if any one is malformed or if
// a doc_id repeats within the batch.
func ValidateBatch(records []ingestion.Record) error {
	errs := make(map[string]string)
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		prefix := fmt.Sprintf("record[%d]", i)
		docID := strings.TrimSpace(rec.DocID)
		switch {
		case docID == "":
			errs[prefix+".doc_id"] = "doc_id is required"
		case len(docID) > maxDocIDLength:
			errs[prefix+".doc_id"] = fmt.Sprintf("doc_id must be at most %d characters", maxDocIDLength)
		default:
			if first, dup := seen[docID]; dup {
				errs[prefix+".doc_id"] = fmt.Sprintf("duplicate of record[%d]", first)
			} else {
				seen[docID] = i
			}
		}
		if strings.TrimSpace(rec.Content) == "" {
			errs[prefix+".content"] = "content is required and must not be empty"
		}
		if len(rec.Title) > maxTitleLength {
			errs[prefix+".title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
