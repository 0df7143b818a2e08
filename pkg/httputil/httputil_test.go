package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/PackStore/pkg/errors"
	"github.com/utafrali/PackStore/pkg/logger"
	"github.com/utafrali/PackStore/pkg/validator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"id": "1"}, resp.Data)
}

func TestWriteError(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error", apperrors.NotFound("cart", "anon:1"), http.StatusNotFound, "NOT_FOUND"},
		{"gone", apperrors.Gone("poll expired"), http.StatusGone, "GONE"},
		{"wrapped sentinel", fmt.Errorf("load: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"limit sentinel", fmt.Errorf("add: %w", apperrors.ErrLimitExceeded), http.StatusUnprocessableEntity, "LIMIT_EXCEEDED"},
		{"unavailable", fmt.Errorf("catalog: %w", apperrors.ErrServiceUnavail), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)

			WriteError(rec, req, tt.err, quiet)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWriteError_InternalIsLoggedAndHidden(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-9"))

	WriteError(rec, req, fmt.Errorf("redis: connection reset"), l)

	resp := decode(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.Equal(t, "req-9", resp.Error.RequestID)
	assert.Contains(t, buf.String(), "connection reset")
}

func TestWriteValidationError(t *testing.T) {
	type body struct {
		Quantity int `json:"quantity" validate:"min=1"`
	}
	err := validator.Validate(body{Quantity: 0})

	rec := httptest.NewRecorder()
	WriteValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be at least 1", resp.Error.Fields["quantity"])

	rec = httptest.NewRecorder()
	WriteValidationError(rec, fmt.Errorf("decode request body: EOF"))
	assert.Equal(t, "INVALID_INPUT", decode(t, rec).Error.Code)
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()

	rec := httptest.NewRecorder()
	got, ok := ParseUUID(rec, id.String())
	assert.True(t, ok)
	assert.Equal(t, id, got)

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decode(t, rec).Error.Code)
}
