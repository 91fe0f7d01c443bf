package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed")
	require.Equal(t, "failed: boom", err.Error())
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", http.StatusBadRequest)
	with := base.WithInternal(stdErrors.New("oops"))

	require.NotSame(t, base, with)
	require.Nil(t, base.Internal)
	require.NotNil(t, with.Internal)
}

func TestFromError(t *testing.T) {
	require.Same(t, ErrNotFound, FromError(ErrNotFound))

	wrapped := fmt.Errorf("registration: %w", ErrDuplicateRegistration)
	require.Same(t, ErrDuplicateRegistration, FromError(wrapped))

	out := FromError(stdErrors.New("raw"))
	require.Equal(t, ErrInternalServer.Code, out.Code)
	require.NotNil(t, out.Internal)
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	require.Equal(t, ErrBadRequest.Code, err.Code)
	require.Equal(t, "invalid payload", err.Message)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestDomainErrorStatusCodes(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, ErrDuplicateRegistration.StatusCode)
	require.Equal(t, http.StatusInternalServerError, ErrIssuanceFailed.StatusCode)
	require.Equal(t, http.StatusInternalServerError, ErrStorageUnavailable.StatusCode)
	require.Equal(t, http.StatusBadRequest, ErrCodeRequired.StatusCode)
}
