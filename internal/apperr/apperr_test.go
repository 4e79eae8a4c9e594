package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("import: %w", EmptyImport())

	require.Equal(t, CodeEmptyImport, CodeOf(err))
	require.True(t, Is(err, CodeEmptyImport))
	require.False(t, Is(err, CodeValidation))
	require.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Store("AddMovie", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, http.StatusInternalServerError, StatusOf(err))
	require.Contains(t, err.Error(), "AddMovie")
	require.NotContains(t, MessageOf(err), "connection refused")
}

func TestUnknownErrorDefaults(t *testing.T) {
	err := errors.New("boom")

	require.Equal(t, Code(""), CodeOf(err))
	require.Equal(t, http.StatusInternalServerError, StatusOf(err))
	require.Equal(t, "服务器内部错误", MessageOf(err))
}

func TestStatuses(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Validation("名称不能为空"), http.StatusBadRequest},
		{Unauthorized(""), http.StatusUnauthorized},
		{NotFound("x"), http.StatusNotFound},
		{InvalidState("no_lists", "open"), http.StatusConflict},
		{NoEligibleEntries(), http.StatusUnprocessableEntity},
		{RateLimited(), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Code), func(t *testing.T) {
			require.Equal(t, tc.status, tc.err.Status)
		})
	}
}
