package v1_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	body := map[string]string{
		"email":    fmt.Sprintf("dup_%d@example.com", time.Now().UnixNano()),
		"name":     "Dup",
		"password": "password123",
	}

	resp, _ := doJSON(t, app, "POST", "/api/v1/register", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := doJSON(t, app, "POST", "/api/v1/register", "", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", env.Code)
	assert.False(t, env.Success)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)
	resp, env := doJSON(t, app, "POST", "/api/v1/register", "", map[string]string{
		"email": "not-an-email", "name": "x", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", env.Code)
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	app := newTestApp(t)
	email := fmt.Sprintf("lock_%d@example.com", time.Now().UnixNano())
	resp, _ := doJSON(t, app, "POST", "/api/v1/register", "", map[string]string{
		"email": email, "name": "Lock", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	wrong := map[string]string{"email": email, "password": "wrong-password"}
	for want := 4; want >= 1; want-- {
		resp, env := doJSON(t, app, "POST", "/api/v1/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.NotNil(t, env.RemainingAttempts)
		assert.Equal(t, want, *env.RemainingAttempts)
	}

	resp, env := doJSON(t, app, "POST", "/api/v1/login", "", wrong)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.Equal(t, "account_locked", env.Code)
	assert.Equal(t, 30, env.RetryAfterMinutes)
	assert.Equal(t, "1800", resp.Header.Get("Retry-After"))

	resp, env = doJSON(t, app, "POST", "/api/v1/login", "", map[string]string{"email": email, "password": "password123"})
	assert.Equal(t, http.StatusLocked, resp.StatusCode, "correct password is refused while locked")
	assert.Equal(t, "account_locked", env.Code)
}

func TestLoginUnknownAccountIsGeneric(t *testing.T) {
	app := newTestApp(t)
	resp, env := doJSON(t, app, "POST", "/api/v1/login", "", map[string]string{
		"email": "nobody@example.com", "password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", env.Message)
	assert.Nil(t, env.RemainingAttempts)
}

func TestAdminLoginNeedsIndexCode(t *testing.T) {
	app := newTestApp(t)
	adminLogin(t, app, "IDX-API-1")

	resp, env := doJSON(t, app, "POST", "/api/v1/admin/login", "", map[string]string{
		"email": "missing@example.com", "password": "adminpass1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", env.Code)
}

func TestExpiredPasswordFlow(t *testing.T) {
	app := newTestApp(t)
	userID, _ := registerAndLogin(t, app)
	_, err := testDB.Exec("UPDATE users SET password_changed_at = NOW() - INTERVAL '91 days' WHERE id = $1", userID)
	require.NoError(t, err)

	var email string
	require.NoError(t, testDB.QueryRow("SELECT email FROM users WHERE id = $1", userID).Scan(&email))
	data := login(t, app, "/api/v1/login", map[string]string{"email": email, "password": "password123"})
	assert.True(t, data.PasswordExpired)

	resp, env := doJSON(t, app, "GET", "/api/v1/tasks", data.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "password_expired", env.Code)

	resp, env = doJSON(t, app, "PUT", "/api/v1/account/password", data.Token, map[string]string{
		"current_password": "password123", "new_password": "a-new-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	fresh := login(t, app, "/api/v1/login", map[string]string{"email": email, "password": "a-new-password"})
	assert.False(t, fresh.PasswordExpired)
	resp, _ = doJSON(t, app, "GET", "/api/v1/tasks", fresh.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
