package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret-0123456789-abcdef"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func serveWithCaller(t *testing.T, token string) (*httptest.ResponseRecorder, service.Caller, string) {
	t.Helper()
	SetJWTSecret(testSecret)
	SetJWTValidation("", "")

	var caller service.Caller
	var scope string
	h := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ = CallerFromContext(r.Context())
		scope = CallerScope(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, caller, scope
}

func TestAuthMiddlewareReadsBothIdentitySchemes(t *testing.T) {
	w, caller, scope := serveWithCaller(t, signed(t, jwt.MapClaims{"customer_id": 7, "sub": "auth0|abc"}))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, caller.LegacyCustomerID)
	require.NotNil(t, caller.ExternalUserID)
	assert.Equal(t, int64(7), *caller.LegacyCustomerID)
	assert.Equal(t, "auth0|abc", *caller.ExternalUserID)
	assert.Equal(t, "external:auth0|abc", scope)

	w, caller, scope = serveWithCaller(t, signed(t, jwt.MapClaims{"customer_id": 12}))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, caller.ExternalUserID)
	assert.Equal(t, "legacy:12", scope)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	w, _, _ := serveWithCaller(t, signed(t, jwt.MapClaims{"customer_id": 0}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _, _ = serveWithCaller(t, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("another-secret-0123456789-abcdefgh"))
	require.NoError(t, err)
	w, _, _ = serveWithCaller(t, other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	SetJWTSecret(testSecret)
	SetJWTValidation("", "")
	h := AuthMiddleware(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for role, want := range map[string]int{RoleAdmin: http.StatusOK, "customer": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/awards", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"sub": "ops", "role": role}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}
