package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

type doerFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f doerFunc) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

func statusDoer(status int) doerFunc {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("{}"))}, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func tripFastConfig(name string) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig(name)
	cfg.MinRequests = 2
	cfg.Timeout = time.Hour
	return cfg
}

func newGet(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://orders.local/orders", nil)
	require.NoError(t, err)
	return req
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	cb := NewCircuitBreakerClient(statusDoer(http.StatusInternalServerError), tripFastConfig("cb-open"), quietLogger())

	for i := 0; i < 2; i++ {
		_, err := cb.Do(context.Background(), newGet(t))
		assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Do(context.Background(), newGet(t))
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
}

func TestCircuitBreaker_NotFoundIsNotAFailure(t *testing.T) {
	cb := NewCircuitBreakerClient(statusDoer(http.StatusNotFound), tripFastConfig("cb-404"), quietLogger())

	for i := 0; i < 10; i++ {
		resp, err := cb.Do(context.Background(), newGet(t))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := NewCircuitBreakerClient(statusDoer(http.StatusBadGateway), tripFastConfig("cb-fallback"), quietLogger()).
		WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"data":{}}`))}, nil
		})

	for i := 0; i < 2; i++ {
		_, _ = cb.Do(context.Background(), newGet(t))
	}

	resp, err := cb.Do(context.Background(), newGet(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, float64(0), stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, float64(1), stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, float64(2), stateToFloat(gobreaker.StateOpen))
}
