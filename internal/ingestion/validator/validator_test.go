package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBatchAcceptsWellFormed(t *testing.T) {
	err := ValidateBatch([]ingestion.Record{
		{DocID: "1", Content: "cat dog"},
		{DocID: "2", Title: "t", URL: "u", Content: "dog"},
	})
	assert.NoError(t, err)
}

func TestValidateBatchReportsEveryField(t *testing.T) {
	err := ValidateBatch([]ingestion.Record{
		{DocID: "", Content: "x"},
		{DocID: "2", Content: "  "},
		{DocID: "3", Content: "y", Title: strings.Repeat("t", maxTitleLength+1)},
		{DocID: "2", Content: "z"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 4)
	assert.Contains(t, verr.Fields, "record[0].doc_id")
	assert.Contains(t, verr.Fields, "record[1].content")
	assert.Contains(t, verr.Fields, "record[2].title")
	assert.Equal(t, "duplicate of record[1]", verr.Fields["record[3].doc_id"])
}

func TestValidateRecord(t *testing.T) {
	assert.NoError(t, ValidateRecord(ingestion.Record{DocID: "d", Content: "c"}))
	assert.ErrorIs(t, ValidateRecord(ingestion.Record{DocID: "d"}), apperrors.ErrValidation)
}
