package v1_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/internal/service/files"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestUploadDownloadAndCommit(t *testing.T) {
	app := newTestApp(t)
	_, ownerToken := registerAndLogin(t, app)
	_, strangerToken := registerAndLogin(t, app)
	_, adminToken := adminLogin(t, app, "IDX-API-3")

	resp, env := doJSON(t, app, "POST", "/api/v1/tasks", ownerToken, map[string]interface{}{
		"title":    "Expenses",
		"due_date": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task models.TaskView
	require.NoError(t, json.Unmarshal(env.Data, &task))

	content := []byte("%PDF-1.4 receipts")
	resp = uploadFile(t, app, fmt.Sprintf("/api/v1/tasks/%d/uploads", task.ID), ownerToken, "file", "receipts.pdf", "application/pdf", content)
	env = decode(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var upload models.Upload
	require.NoError(t, json.Unmarshal(env.Data, &upload))

	downloadPath := fmt.Sprintf("/api/v1/uploads/%d", upload.ID)
	resp = get(t, app, downloadPath, strangerToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", decode(t, resp).Code)

	resp = get(t, app, downloadPath, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=receipts.pdf`, resp.Header.Get("Content-Disposition"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, body)

	commitPath := fmt.Sprintf("/api/v1/admin/tasks/%d/commit", task.ID)
	resp, env = doJSON(t, app, "POST", commitPath, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "task is not completed yet")

	resp, _ = doJSON(t, app, "PUT", fmt.Sprintf("/api/v1/tasks/%d/status", task.ID), ownerToken, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = doJSON(t, app, "POST", commitPath, adminToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var result files.CommitResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Committed)

	resp, env = doJSON(t, app, "POST", commitPath+"?dedup=true", adminToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "nothing_to_commit", env.Code)

	resp, env = doJSON(t, app, "GET", "/api/v1/admin/repository", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var repoFiles []models.RepositoryFile
	require.NoError(t, json.Unmarshal(env.Data, &repoFiles))
	var committed *models.RepositoryFile
	for i := range repoFiles {
		if repoFiles[i].SourceTaskID != nil && *repoFiles[i].SourceTaskID == task.ID {
			committed = &repoFiles[i]
		}
	}
	require.NotNil(t, committed)

	resp = get(t, app, fmt.Sprintf("/api/v1/admin/repository/%d", committed.ID), adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestUploadProfilePicture(t *testing.T) {
	app := newTestApp(t)
	_, token := registerAndLogin(t, app)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	resp := uploadFile(t, app, "/api/v1/upload/profile_picture", token, "profile_picture", "me.png", "image/png", png)
	env := decode(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Regexp(t, `^/uploads/.+\.png$`, data["profile_picture"])

	resp = uploadFile(t, app, "/api/v1/upload/profile_picture", token, "profile_picture", "notes.txt", "text/plain", []byte("hi"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
