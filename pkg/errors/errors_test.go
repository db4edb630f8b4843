package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", Clone(ErrNotFound, "session not found"))

	got := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, got.Code)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "session not found", got.Message)
}

func TestFromErrorHidesUnknownErrors(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, ErrInternal.Message, got.Message)
	assert.ErrorIs(t, got, sql.ErrConnDone)
}

func TestIsComparesCodes(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrScheduleConflict.Code, ErrScheduleConflict.Status, "slot taken")
	assert.True(t, Is(err, ErrScheduleConflict))
	assert.False(t, Is(err, ErrValidation))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
}

func TestCloneAndDetailsDoNotMutateOriginal(t *testing.T) {
	detailed := WithDetails(ErrValidation, map[string]string{"start_time": "required"})
	assert.NotNil(t, detailed.Details)
	assert.Nil(t, ErrValidation.Details)

	cloned := Clone(ErrValidation, "")
	assert.Equal(t, ErrValidation.Message, cloned.Message)
}
