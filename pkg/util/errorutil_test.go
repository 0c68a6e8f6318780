package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load ticket: %w", NewNotFound("ticket", nil))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrImmutable))
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestNewInvalidTransition_CarriesStates(t *testing.T) {
	err := NewInvalidTransition("ticket", "scheduled", "completed", "")

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, CodeInvalidTransition, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, "scheduled", de.Details["from"])
	assert.Equal(t, "completed", de.Details["to"])
	assert.NotContains(t, de.Details, "reason")
}

func TestNewInfrastructure_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := NewInfrastructure("acquire", cause)

	de := ToDomainError(err)
	assert.Equal(t, "storage unavailable", de.Message)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, ErrInfrastructure))
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))

	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
	assert.Equal(t, "", CodeOf(nil))
}
