package v1_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	v1 "staff-tracker/internal/api/v1"
	"staff-tracker/internal/api/v1/handlers"
	"staff-tracker/internal/blobstore"
	"staff-tracker/internal/middleware"
	"staff-tracker/internal/repository"
	"staff-tracker/internal/service/auth"
	"staff-tracker/internal/service/files"
	"staff-tracker/internal/service/tasks"
	"staff-tracker/internal/session"
	"staff-tracker/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	// Set GO_ENV to "test" so LoadConfig does not print .env logs
	os.Setenv("GO_ENV", "test")

	var cleanup func()
	testDB, cleanup = testutil.StartPostgres()

	code := m.Run()
	cleanup()
	os.Exit(code)
}

// newTestApp wires the full route table against the test database.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	testutil.RequireDB(t, testDB)

	repoStore, err := blobstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	pictureStore, err := blobstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	accounts := repository.NewAccounts(testDB)
	policy := auth.DefaultPolicy()
	policy.HashCost = bcrypt.MinCost

	h := &handlers.Handler{
		Auth:     auth.NewService(accounts, accounts.Users, policy),
		Tasks:    tasks.NewService(testDB, accounts.Admins, tasks.WithDispatcher(func(f func()) { f() })),
		Files:    files.NewService(testDB, repoStore, pictureStore, accounts.Users),
		Users:    accounts.Users,
		Admins:   accounts.Admins,
		Sessions: session.NewIssuer("test-secret", time.Hour),
	}

	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	v1.RegisterRoutes(app, h, nil)
	return app
}

type envelope struct {
	Message           string          `json:"message"`
	Success           bool            `json:"success"`
	Status            int             `json:"status"`
	Code              string          `json:"code"`
	Data              json.RawMessage `json:"data"`
	RetryAfterMinutes int             `json:"retry_after_minutes"`
	RemainingAttempts *int            `json:"remaining_attempts"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return env
}

func uploadFile(t *testing.T, app *fiber.App, path, token, field, name, contentType string, content []byte) *http.Response {
	t.Helper()
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", path, &b)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type loginData struct {
	Token           string `json:"token"`
	PasswordExpired bool   `json:"password_expired"`
}

func login(t *testing.T, app *fiber.App, path string, body map[string]string) loginData {
	t.Helper()
	resp, env := doJSON(t, app, "POST", path, "", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var data loginData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data
}

// registerAndLogin creates a fresh user over HTTP and returns its id and token.
func registerAndLogin(t *testing.T, app *fiber.App) (int, string) {
	t.Helper()
	email := fmt.Sprintf("api_%d@example.com", time.Now().UnixNano())
	resp, env := doJSON(t, app, "POST", "/api/v1/register", "", map[string]string{
		"email": email, "name": "Api User", "department": "Ops", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var created struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	data := login(t, app, "/api/v1/login", map[string]string{"email": email, "password": "password123"})
	return created.ID, data.Token
}

func adminLogin(t *testing.T, app *fiber.App, indexCode string) (int, string) {
	t.Helper()
	admin := testutil.CreateAdmin(t, testDB, "adminpass1", indexCode, false)
	data := login(t, app, "/api/v1/admin/login", map[string]string{
		"email": admin.Email, "password": "adminpass1", "index_code": indexCode,
	})
	return admin.ID, data.Token
}
