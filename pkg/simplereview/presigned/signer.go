// Package presigned builds stable HMAC-signed media URLs and validates them
// on the way back in. Signed URLs never contain the storage root, only the
// store-relative key.
package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC-signed media URLs
type Signer struct {
	secretKey []byte
	window    time.Duration
	prefix    string
	now       func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		window: time.Hour,
		prefix: "/media/",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !strings.HasSuffix(s.prefix, "/") {
		s.prefix += "/"
	}
	return s
}

// SignPath returns the caller-facing URL for a store-relative key
//
// Example:
//
//	url, err := signer.SignPath("images/ab/cdef.png")
//	// Returns: /media/images/ab/cdef.png?expires=1696791600&signature=abc123...
func (s *Signer) SignPath(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	path := s.prefix + escapeKey(key)
	if !s.IsEnabled() {
		return path, nil
	}

	expiresAt := s.expiry()
	signature := s.generateSignature(s.createPayload(http.MethodGet, key, expiresAt))
	return fmt.Sprintf("%s?expires=%d&signature=%s", path, expiresAt, signature), nil
}

// expiry rounds up to the end of the next window
func (s *Signer) expiry() int64 {
	window := int64(s.window / time.Second)
	return (s.now().Unix()/window + 2) * window
}

// ValidateRequest checks the signature and expiration of a media request
// and returns the object key it grants access to
func (s *Signer) ValidateRequest(r *http.Request) (string, error) {
	key, err := s.ExtractObjectKey(r.URL.Path)
	if err != nil {
		return "", err
	}
	if !s.IsEnabled() {
		return key, nil
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")
	if signature == "" || expiresStr == "" {
		return "", ErrUnsigned
	}
	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadExpiry, err)
	}

	// HEAD requests share GET signatures.
	if err := s.Validate(http.MethodGet, key, signature, expiresAt); err != nil {
		return "", err
	}
	return key, nil
}

// Validate validates the signature and expiration for a given key
func (s *Signer) Validate(method, key, signature string, expiresAt int64) error {
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}
	expected := s.generateSignature(s.createPayload(method, key, expiresAt))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}

// ExtractObjectKey strips the media prefix from a request path
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	if !strings.HasPrefix(path, s.prefix) {
		return "", fmt.Errorf("path does not match media prefix")
	}
	key := strings.TrimPrefix(path, s.prefix)
	if key == "" {
		return "", fmt.Errorf("path has no object key")
	}
	return key, nil
}

// IsEnabled returns true if signing is enabled (secret key is set)
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// createPayload creates the signature payload: METHOD|KEY|EXPIRES
func (s *Signer) createPayload(method, key string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, key, expiresAt)
}

// generateSignature generates HMAC-SHA256 signature for the given payload
func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
