package simplereview

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Code is a stable machine-readable error code.
type Code string

// Error codes surfaced to callers.
const (
	CodeInvalidState         Code = "INVALID_STATE"
	CodeReasonRequired       Code = "REASON_REQUIRED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeStaleSession         Code = "STALE_SESSION"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error types
var (
	// ErrInvalidState indicates the requested transition has no edge from the current state
	ErrInvalidState = errors.New("transition not permitted from current state")

	// ErrReasonRequired indicates a rejection without a reason
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrNotFound is the root of every not-found condition, including
	// rejected storage paths.
	ErrNotFound = errors.New("not found")

	ErrScriptNotFound  = fmt.Errorf("script %w", ErrNotFound)
	ErrVersionNotFound = fmt.Errorf("version %w", ErrNotFound)
	ErrImageNotFound   = fmt.Errorf("image %w", ErrNotFound)
	ErrObjectNotFound  = fmt.Errorf("object %w", ErrNotFound)

	// ErrUnauthorized indicates an operation that needs an authenticated actor
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden indicates the actor lacks the role or ownership required
	ErrForbidden = errors.New("insufficient privileges")

	// ErrUnsupportedMediaType indicates an upload outside the MIME allowlist
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrPayloadTooLarge indicates an upload above the size ceiling
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrTooManyImages indicates the per-script image limit was reached
	ErrTooManyImages = fmt.Errorf("image limit reached: %w", ErrPayloadTooLarge)

	// ErrStaleSession indicates the actor id no longer resolves to a live account
	ErrStaleSession = errors.New("session refers to an account that no longer exists")

	// ErrInvalidArgument indicates malformed caller input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicate is returned by repositories on unique-constraint violations
	ErrDuplicate = errors.New("duplicate entry")
)

// CodeOf classifies err into the public taxonomy. Anything unrecognised is
// an internal error.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrReasonRequired):
		return CodeReasonRequired
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStaleSession):
		return CodeStaleSession
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrUnsupportedMediaType):
		return CodeUnsupportedMediaType
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	default:
		return CodeInternal
	}
}

// ScriptError represents an error related to a script operation
type ScriptError struct {
	ScriptID uuid.UUID
	Op       string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script operation %s failed for script %s: %v", e.Op, e.ScriptID, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to content store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
