package presigned

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestSignPath_Unsigned(t *testing.T) {
	s := New()
	u, err := s.SignPath("images/ab/cd.png")
	require.NoError(t, err)
	assert.Equal(t, "/media/images/ab/cd.png", u)
	assert.False(t, s.IsEnabled())
}

func TestSignPath_StableWithinWindow(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := New(WithSecretKey("secret"), WithWindow(time.Hour), WithClock(c.now))

	first, err := s.SignPath("images/ab/cd.png")
	require.NoError(t, err)

	c.t = c.t.Add(10 * time.Minute)
	second, err := s.SignPath("images/ab/cd.png")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "/media/images/ab/cd.png?expires="))
}

func TestSignPath_ExpiryCoversAtLeastOneWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := New(WithSecretKey("secret"), WithWindow(time.Hour), WithClock(func() time.Time { return now }))

	u, err := s.SignPath("k")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, u, nil)
	expires, err := strconv.ParseInt(req.URL.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, expires-now.Unix(), int64(3600))
	assert.LessOrEqual(t, expires-now.Unix(), int64(7200))
	assert.Zero(t, expires%3600)
}

func TestValidateRequest(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := New(WithSecretKey("secret"), WithClock(c.now))
	signed, err := s.SignPath("images/ab/cd.png")
	require.NoError(t, err)

	key, err := s.ValidateRequest(httptest.NewRequest(http.MethodGet, signed, nil))
	require.NoError(t, err)
	assert.Equal(t, "images/ab/cd.png", key)

	tests := []struct {
		name    string
		target  string
		wantErr error
	}{
		{"missing signature", "/media/images/ab/cd.png?expires=9999999999", ErrUnsigned},
		{"missing expires", "/media/images/ab/cd.png?signature=abc", ErrUnsigned},
		{"bad expires", "/media/images/ab/cd.png?signature=abc&expires=soon", ErrBadExpiry},
		{"tampered key", strings.Replace(signed, "cd.png", "ce.png", 1), ErrBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ValidateRequest(httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.ErrorIs(t, err, tt.wantErr)
			rejection, ok := RejectionOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantErr, rejection)
		})
	}

	c.t = c.t.Add(3 * time.Hour)
	_, err = s.ValidateRequest(httptest.NewRequest(http.MethodGet, signed, nil))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateMiddleware(t *testing.T) {
	s := New(WithSecretKey("secret"))
	var gotKey string
	handler := ValidateMiddleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = ObjectKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	signed, err := s.SignPath("documents/aa/bb.json")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, signed, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "documents/aa/bb.json", gotKey)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/documents/aa/bb.json", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/documents/aa/bb.json?signature=x&expires=later", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, strings.Replace(signed, "bb.json", "bc.json", 1), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
