package presigned

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing. Without a key the
// signer emits plain, unsigned media URLs.
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithWindow sets the signing window. Expiry is rounded to window boundaries
// so the same path signs to the same URL for the whole window, and a URL
// stays valid for at least one full window.
func WithWindow(window time.Duration) Option {
	return func(s *Signer) {
		if window >= time.Second {
			s.window = window
		}
	}
}

// WithPrefix sets the URL prefix media is served under (default: /media/)
func WithPrefix(prefix string) Option {
	return func(s *Signer) {
		s.prefix = prefix
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
