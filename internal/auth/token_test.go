package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAccessToken(t *testing.T) {
	t.Run("Cookie Preferred", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie_token"})
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "cookie_token", ExtractAccessToken(req))
	})

	t.Run("Header Fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "header_token", ExtractAccessToken(req))
	})

	t.Run("Empty Cookie Falls Back to Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: ""})
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "header_token", ExtractAccessToken(req))
	})

	t.Run("No Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(t, ExtractAccessToken(req))
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		assert.Empty(t, ExtractAccessToken(req))
	})
}

func TestParseToken(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("Valid", func(t *testing.T) {
		tokenStr, err := NewToken(Claims{UserID: "admin-1", Role: "admin"}, secret, time.Hour)
		require.NoError(t, err)

		claims, err := ParseToken(tokenStr, secret)
		require.NoError(t, err)
		assert.Equal(t, "admin-1", claims.UserID)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("Expired", func(t *testing.T) {
		tokenStr, err := NewToken(Claims{UserID: "admin-1", Role: "admin"}, secret, -time.Hour)
		require.NoError(t, err)

		_, err = ParseToken(tokenStr, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		tokenStr, err := NewToken(Claims{UserID: "admin-1"}, []byte("other"), time.Hour)
		require.NoError(t, err)

		_, err = ParseToken(tokenStr, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Missing UserID", func(t *testing.T) {
		tokenStr, err := NewToken(Claims{Role: "admin"}, secret, time.Hour)
		require.NoError(t, err)

		_, err = ParseToken(tokenStr, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Non HMAC Method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "admin-1"})
		tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ParseToken(tokenStr, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ParseToken("", secret)
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}
