package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartSession_IssuesAndKeepsCookie(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CartSession(false))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(middleware.CartID(c)) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_, err = uuid.Parse(string(body))
	require.NoError(t, err)

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.CartCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 90*24*3600, cookie.MaxAge)

	existing := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CartCookie, Value: existing})
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, existing, string(body))
	assert.Empty(t, resp.Cookies(), "a valid cookie is not reissued")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CartCookie, Value: "../../etc"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.NotEqual(t, "../../etc", string(body))
}

func signedToken(t *testing.T, secret string, exp time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-1",
		"username": "elin",
		"exp":      time.Now().Add(exp).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService(repositories.NewMockUserRepository(), "secret")
	app := fiber.New()
	app.Get("/required", middleware.AuthRequired(auth), func(c *fiber.Ctx) error { return c.SendString(middleware.UserID(c)) })
	app.Get("/optional", middleware.OptionalAuth(auth), func(c *fiber.Ctx) error { return c.SendString("user=" + middleware.UserID(c)) })

	cases := []struct {
		path, header string
		status       int
		body         string
	}{
		{"/required", "", http.StatusUnauthorized, ""},
		{"/required", "Token abc", http.StatusUnauthorized, ""},
		{"/required", "Bearer " + signedToken(t, "other", time.Hour), http.StatusUnauthorized, ""},
		{"/required", "Bearer " + signedToken(t, "secret", -time.Hour), http.StatusUnauthorized, ""},
		{"/required", "Bearer " + signedToken(t, "secret", time.Hour), http.StatusOK, "user-1"},
		{"/optional", "", http.StatusOK, "user="},
		{"/optional", "Bearer garbage", http.StatusOK, "user="},
		{"/optional", "Bearer " + signedToken(t, "secret", time.Hour), http.StatusOK, "user=user-1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path+" "+tc.header)
		if tc.body != "" {
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tc.body, string(body))
		}
	}
}
