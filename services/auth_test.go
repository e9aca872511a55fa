package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAccessToken(t *testing.T) {
	auth := NewAuthService("secret")

	token, err := auth.IssueToken("user-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	identity, err := auth.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, "a@example.com", identity.Email)

	expired, err := auth.IssueToken("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = auth.VerifyAccessToken(expired)
	assert.Error(t, err)

	_, err = NewAuthService("other").VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestVerifyAccessTokenUserIDClaim(t *testing.T) {
	claims := jwt.MapClaims{"user_id": "legacy-user", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	identity, err := NewAuthService("secret").VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "legacy-user", identity.UserID)
}

func TestVerifyAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewAuthService("secret").VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestGetTokenSources(t *testing.T) {
	auth := NewAuthService("secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, auth.GetToken(req))

	req.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", auth.GetToken(req))

	req.AddCookie(&http.Cookie{Name: "__session", Value: "from-session"})
	assert.Equal(t, "from-session", auth.GetToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", auth.GetToken(req))
}

func TestMiddlewareSetsIdentity(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssueToken("user-7", "", time.Hour)
	require.NoError(t, err)

	var seen string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = resolveUserID(r, "spoofed")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-7", seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
}
