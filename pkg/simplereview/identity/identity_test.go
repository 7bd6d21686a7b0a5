package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/identity"
)

func serve(t *testing.T, auth *identity.Authenticator, token string) (*simplereview.Actor, int, error) {
	t.Helper()
	var (
		got     *simplereview.Actor
		authErr error
	)
	handler := auth.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		authErr = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = identity.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return got, rec.Code, authErr
}

func TestMiddleware(t *testing.T) {
	auth := identity.NewAuthenticator("test-secret")
	userID := uuid.New()

	t.Run("Anonymous", func(t *testing.T) {
		actor, code, err := serve(t, auth, "")
		assert.Nil(t, actor)
		assert.Equal(t, http.StatusNoContent, code)
		assert.NoError(t, err)
	})

	t.Run("ValidToken", func(t *testing.T) {
		token, err := auth.IssueToken(userID, simplereview.RoleAdmin, time.Hour)
		require.NoError(t, err)

		actor, code, _ := serve(t, auth, token)
		assert.Equal(t, http.StatusNoContent, code)
		require.NotNil(t, actor)
		assert.Equal(t, userID, actor.UserID)
		assert.Equal(t, simplereview.RoleAdmin, actor.Role)
	})

	t.Run("ForeignSignature", func(t *testing.T) {
		token, err := identity.NewAuthenticator("other-secret").IssueToken(userID, simplereview.RoleSuperuser, time.Hour)
		require.NoError(t, err)

		actor, code, err := serve(t, auth, token)
		assert.Nil(t, actor)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.ErrorIs(t, err, simplereview.ErrUnauthorized)
	})
}

func TestActorFromClaims(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name     string
		claims   map[string]interface{}
		wantRole simplereview.Role
		wantErr  bool
	}{
		{"user", map[string]interface{}{"sub": id.String(), "role": "user"}, simplereview.RoleUser, false},
		{"superuser", map[string]interface{}{"sub": id.String(), "role": "superuser"}, simplereview.RoleSuperuser, false},
		{"unknown role", map[string]interface{}{"sub": id.String(), "role": "root"}, simplereview.RoleUser, false},
		{"missing role", map[string]interface{}{"sub": id.String()}, simplereview.RoleUser, false},
		{"bad subject", map[string]interface{}{"sub": "alice"}, "", true},
		{"nil subject", map[string]interface{}{"sub": uuid.Nil.String()}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := identity.ActorFromClaims(tt.claims)
			if tt.wantErr {
				assert.ErrorIs(t, err, simplereview.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, actor.Role)
			assert.Equal(t, id, actor.UserID)
		})
	}
}

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	dir := identity.NewStaticDirectory(id)

	ok, err := dir.AccountExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	dir.Remove(id)
	ok, err = dir.AccountExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	dir.Add(id)
	ok, _ = dir.AccountExists(ctx, id)
	assert.True(t, ok)
}
