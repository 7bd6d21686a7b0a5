package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-review/pkg/simplereview"
)

// ErrorBody is the stable error envelope returned by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      simplereview.Code `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code simplereview.Code) int {
	switch code {
	case simplereview.CodeInvalidState:
		return http.StatusConflict
	case simplereview.CodeReasonRequired:
		return http.StatusUnprocessableEntity
	case simplereview.CodeNotFound:
		return http.StatusNotFound
	case simplereview.CodeUnauthorized, simplereview.CodeStaleSession:
		return http.StatusUnauthorized
	case simplereview.CodeForbidden:
		return http.StatusForbidden
	case simplereview.CodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case simplereview.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case simplereview.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage never exposes storage keys, paths or internal causes.
func publicMessage(code simplereview.Code, err error) string {
	switch code {
	case simplereview.CodeNotFound:
		return "not found"
	case simplereview.CodeInternal:
		return "an internal error occurred"
	case simplereview.CodeUnauthorized:
		return simplereview.ErrUnauthorized.Error()
	case simplereview.CodeStaleSession:
		return simplereview.ErrStaleSession.Error()
	}
	var scriptErr *simplereview.ScriptError
	if errors.As(err, &scriptErr) {
		return scriptErr.Err.Error()
	}
	return err.Error()
}

// WriteError renders err as the error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := simplereview.CodeOf(err)
	status := StatusFor(code)
	requestID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", requestID, "err", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   publicMessage(code, err),
		RequestID: requestID,
	}})
}
