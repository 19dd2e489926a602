package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func withRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, UserRolesKey, roles)
}

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testKey)
	require.NoError(t, err)
	return signed
}

func doRequest(mw echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, UserIDFromContext(c.Request().Context()))
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	signed := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-17",
			Issuer:    "rcm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"registrar"},
	})

	rec := doRequest(JWTMiddleware(JWTConfig{Issuer: "rcm", SigningKey: testKey}), "Bearer "+signed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "staff-17", rec.Body.String())
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec := doRequest(JWTMiddleware(JWTConfig{SigningKey: testKey}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	signed := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-17",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	rec := doRequest(JWTMiddleware(JWTConfig{Issuer: "rcm", SigningKey: testKey}), "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	signed := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-17",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	rec := doRequest(JWTMiddleware(JWTConfig{SigningKey: testKey}), "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(roles []string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		ctx := c.Request().Context()
		if roles != nil {
			c.SetRequest(c.Request().WithContext(withRoles(ctx, roles)))
		}
		handler := RequireRole("verifier")(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		if err := handler(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run([]string{"verifier"}))
	assert.Equal(t, http.StatusOK, run([]string{"admin"}), "admin passes every role check")
	assert.Equal(t, http.StatusForbidden, run([]string{"registrar"}))
	assert.Equal(t, http.StatusForbidden, run(nil))
}

func TestDevAuthMiddleware(t *testing.T) {
	rec := doRequest(DevAuthMiddleware(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev-user", rec.Body.String())
}
