package presigned

import (
	"errors"
	"net/http"
)

// Rejection is a media request that failed signature checks. Status is the
// HTTP status the middleware answers with.
type Rejection struct {
	Status int
	reason string
}

func (r *Rejection) Error() string { return "presigned: " + r.reason }

var (
	ErrUnsigned     = &Rejection{Status: http.StatusUnauthorized, reason: "signature or expires missing"}
	ErrBadExpiry    = &Rejection{Status: http.StatusBadRequest, reason: "expires is not a unix timestamp"}
	ErrExpired      = &Rejection{Status: http.StatusForbidden, reason: "link expired"}
	ErrBadSignature = &Rejection{Status: http.StatusForbidden, reason: "signature mismatch"}
)

// RejectionOf unwraps err to the Rejection it carries, if any.
func RejectionOf(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
