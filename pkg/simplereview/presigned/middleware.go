package presigned

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const (
	// ObjectKeyContextKey is the context key for storing the validated object key
	ObjectKeyContextKey contextKey = "presigned:object_key"
)

// ValidateMiddleware returns HTTP middleware that validates media URL
// signatures and stores the granted object key in the request context
//
// Example:
//
//	r.With(presigned.ValidateMiddleware(signer)).Get("/media/*", serveMedia)
func ValidateMiddleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := signer.ValidateRequest(r)
			if err != nil {
				handleValidationError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), ObjectKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ObjectKeyFromContext extracts the validated object key from the request context
// Returns empty string if not found
func ObjectKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(ObjectKeyContextKey).(string); ok {
		return key
	}
	return ""
}

// handleValidationError answers with the rejection's status, or 404 for
// paths outside the media prefix
func handleValidationError(w http.ResponseWriter, err error) {
	if rejection, ok := RejectionOf(err); ok {
		http.Error(w, http.StatusText(rejection.Status), rejection.Status)
		return
	}
	slog.Debug("presigned: rejected media request", "err", err)
	http.Error(w, "Not found", http.StatusNotFound)
}
