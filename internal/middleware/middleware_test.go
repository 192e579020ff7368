package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/models"
	"staff-tracker/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(issuer *session.Issuer) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandler())
	app.Get("/me", UseToken(issuer), func(c *fiber.Ctx) error {
		auth, _ := Auth(c)
		return c.JSON(auth)
	})
	app.Put("/password", AllowExpiredPassword(issuer), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/admin", UseToken(issuer), RequireAdmin, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("secret detail")
	})
	return app
}

func bearer(t *testing.T, issuer *session.Issuer, auth models.AuthenticatedContext, expired bool) string {
	t.Helper()
	token, _, err := issuer.Issue(auth, expired)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestUseToken(t *testing.T) {
	issuer := session.NewIssuer("secret", time.Hour)
	app := newApp(issuer)
	user := models.AuthenticatedContext{AccountID: 3, Role: models.RoleUser}

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Token abc", fiber.StatusUnauthorized},
		{"garbage", "Bearer abc", fiber.StatusUnauthorized},
		{"valid", bearer(t, issuer, user, false), fiber.StatusOK},
		{"expired password", bearer(t, issuer, user, true), fiber.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", bearer(t, issuer, user, false))
	resp, err := app.Test(req)
	require.NoError(t, err)
	var got models.AuthenticatedContext
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, user, got)
}

func TestExpiredPasswordMayChangePassword(t *testing.T) {
	issuer := session.NewIssuer("secret", time.Hour)
	app := newApp(issuer)

	req := httptest.NewRequest("PUT", "/password", nil)
	req.Header.Set("Authorization", bearer(t, issuer, models.AuthenticatedContext{AccountID: 3, Role: models.RoleUser}, true))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestExpiredPasswordBlocksOtherRoutes(t *testing.T) {
	issuer := session.NewIssuer("secret", time.Hour)
	app := newApp(issuer)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", bearer(t, issuer, models.AuthenticatedContext{AccountID: 3, Role: models.RoleUser}, true))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "password_expired", body["code"])
	assert.Equal(t, apperror.PasswordExpired().Message, body["message"])
	assert.Equal(t, false, body["success"])
}

func TestRequireAdmin(t *testing.T) {
	issuer := session.NewIssuer("secret", time.Hour)
	app := newApp(issuer)

	for role, want := range map[models.Role]int{models.RoleUser: fiber.StatusForbidden, models.RoleAdmin: fiber.StatusOK} {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", bearer(t, issuer, models.AuthenticatedContext{AccountID: 1, Role: role}, false))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}

func TestErrorHandlerHidesPanic(t *testing.T) {
	app := newApp(session.NewIssuer("secret", time.Hour))

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "secret detail")
}
