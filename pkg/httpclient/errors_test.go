package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_StatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrUnauthorized},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusGone, apperrors.ErrGone},
		{http.StatusTooManyRequests, apperrors.ErrRateLimited},
		{http.StatusServiceUnavailable, apperrors.ErrServiceUnavail},
		{http.StatusInternalServerError, apperrors.ErrUpstream},
		{http.StatusTeapot, apperrors.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(response(tt.status, `{"error":{"code":"X","message":"m"}}`), "orders")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestParseResponseError_PreservesMessage(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadRequest, `{"error":{"code":"VALIDATION_ERROR","message":"bad sku"}}`), "catalog")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "catalog: bad sku", appErr.Message)
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, "short and stout"), "catalog")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTeapot, appErr.Status)
	assert.Equal(t, "UPSTREAM_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "short and stout")
}
