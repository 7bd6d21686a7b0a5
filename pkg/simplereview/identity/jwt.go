// Package identity resolves the acting user of an HTTP request from a
// bearer token. Requests without a token run as anonymous.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"

	"github.com/tendant/simple-review/pkg/simplereview"
)

const (
	ClaimSubject = "sub"
	ClaimRole    = "role"
)

type contextKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor *simplereview.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext returns the request actor, or nil for anonymous requests.
func ActorFromContext(ctx context.Context) *simplereview.Actor {
	actor, _ := ctx.Value(contextKey{}).(*simplereview.Actor)
	return actor
}

// Authenticator issues and verifies HS256 tokens.
type Authenticator struct {
	ja *jwtauth.JWTAuth
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{ja: jwtauth.New("HS256", []byte(secret), nil)}
}

// IssueToken signs a token for userID with the given role.
func (a *Authenticator) IssueToken(userID uuid.UUID, role simplereview.Role, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		ClaimSubject: userID.String(),
		ClaimRole:    string(role),
	}
	jwtauth.SetIssuedNow(claims)
	if ttl > 0 {
		jwtauth.SetExpiryIn(claims, ttl)
	}
	_, token, err := a.ja.Encode(claims)
	return token, err
}

// Middleware verifies the bearer token (header or "jwt" cookie) and stores
// the resolved actor in the request context. A missing token leaves the
// request anonymous; an invalid one is passed to onError.
func (a *Authenticator) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		resolve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if errors.Is(err, jwtauth.ErrNoTokenFound) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				onError(w, r, fmt.Errorf("%w: %v", simplereview.ErrUnauthorized, err))
				return
			}
			actor, err := ActorFromClaims(claims)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
		return jwtauth.Verifier(a.ja)(resolve)
	}
}

// ActorFromClaims builds an actor from verified token claims. The subject
// must be a user id; an unknown or missing role means a regular user.
func ActorFromClaims(claims map[string]interface{}) (*simplereview.Actor, error) {
	sub, _ := claims[ClaimSubject].(string)
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: token subject is not a user id", simplereview.ErrUnauthorized)
	}
	role := simplereview.Role(fmt.Sprint(claims[ClaimRole]))
	switch role {
	case simplereview.RoleUser, simplereview.RoleAdmin, simplereview.RoleSuperuser:
	default:
		role = simplereview.RoleUser
	}
	return &simplereview.Actor{UserID: userID, Role: role}, nil
}
