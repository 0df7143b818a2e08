package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// downstreamError mirrors the error half of the httputil envelope.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and returns an
// AppError preserving the downstream semantics. A 404 always maps to
// ErrNotFound so callers can treat "not there yet" as a normal outcome.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := "", string(body)
	var de downstreamError
	if json.Unmarshal(body, &de) == nil && de.Error != nil {
		code, message = de.Error.Code, de.Error.Message
	}
	return mapStatus(resp.StatusCode, code, message, serviceName)
}

func mapStatus(status int, code, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName+" resource", message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusGone:
		return apperrors.Gone(qualified)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	case status >= 500:
		return apperrors.Upstream(fmt.Sprintf("%s server error (%d/%s): %s", serviceName, status, code, message))
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{Code: code, Message: qualified, Status: status, Err: apperrors.ErrUpstream}
	}
}
