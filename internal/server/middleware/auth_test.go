package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapValidator accepts exactly the tokens it was seeded with.
type mapValidator map[string]uuid.UUID

func (m mapValidator) ValidateToken(token string) (UserIDGetter, error) {
	id, ok := m[token]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return staticClaims(id), nil
}

type staticClaims uuid.UUID

func (c staticClaims) GetUserID() uuid.UUID { return uuid.UUID(c) }

// echoUserID responds 200 with whatever user ID the middleware stored.
func echoUserID(t *testing.T, got *uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserID(r)
		require.NoError(t, err)
		*got = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	userID := uuid.New()
	wrap := AuthMiddleware(mapValidator{"good-token": userID})

	var got uuid.UUID
	req := httptest.NewRequest(http.MethodGet, "/postings", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	wrap(echoUserID(t, &got)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, got)
}

func TestAuthMiddlewareSchemeIsCaseInsensitive(t *testing.T) {
	userID := uuid.New()
	wrap := AuthMiddleware(mapValidator{"good-token": userID})

	var got uuid.UUID
	req := httptest.NewRequest(http.MethodGet, "/postings", nil)
	req.Header.Set("Authorization", "bEaReR good-token")
	w := httptest.NewRecorder()

	wrap(echoUserID(t, &got)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, got)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"no scheme", "some-token"},
		{"scheme only", "Bearer"},
		{"trailing space only", "Bearer "},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"unknown token", "Bearer not-in-the-map"},
		{"extra parts", "Bearer one two"},
	}

	wrap := AuthMiddleware(mapValidator{"good-token": uuid.New()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/postings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			wrap(next).ServeHTTP(w, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "Unauthorized")
		})
	}
}

func TestGetUserID(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		userID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), userID))

		got, err := GetUserID(req)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		got, err := GetUserID(req)
		require.Error(t, err)
		assert.Equal(t, uuid.Nil, got)
	})
}
