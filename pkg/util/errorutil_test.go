package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughDomainErrors(t *testing.T) {
	src := NewInvalidTransition("NEW", "CLOSED")
	mapped := ToDomainError(src)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeInvalidTransition, mapped.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, mapped.HTTPStatus)
	assert.Equal(t, "NEW", mapped.Details["from"])
	assert.Equal(t, "CLOSED", mapped.Details["to"])
}

func TestToDomainError_WrappedDomainError(t *testing.T) {
	src := fmt.Errorf("saving ticket: %w", NewConflict("version mismatch", nil))
	mapped := ToDomainError(src)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeConflict, mapped.Code)
}

func TestToDomainError_NoRowsBecomesNotFound(t *testing.T) {
	mapped := ToDomainError(pgx.ErrNoRows)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeNotFound, mapped.Code)
	assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset")
	mapped := ToDomainError(cause)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeInternalError, mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	assert.ErrorIs(t, mapped, cause)
}

func TestToDomainError_NilStaysNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}

func TestHasCode(t *testing.T) {
	err := NewAlreadyTerminal("CLOSED")
	assert.True(t, HasCode(err, CodeAlreadyTerminal))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
	assert.True(t, HasCode(fmt.Errorf("wrap: %w", err), CodeAlreadyTerminal))
}

func TestDomainError_ErrorIncludesCause(t *testing.T) {
	err := NewInternalError(errors.New("boom"))
	assert.Contains(t, err.Error(), "boom")
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "boom", domainErr.Unwrap().Error())
}
