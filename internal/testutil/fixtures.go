package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword uses the minimum bcrypt cost to keep tests fast.
func HashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// CreateUser inserts a user with a unique email and returns it.
func CreateUser(t *testing.T, db *sql.DB, password string) *models.User {
	t.Helper()
	u := &models.User{
		Credential: models.Credential{
			Email:             fmt.Sprintf("user_%d@example.com", time.Now().UnixNano()),
			PasswordHash:      HashPassword(t, password),
			PasswordChangedAt: time.Now(),
		},
		Name:       "Test User",
		Department: "QA",
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), u))
	return u
}

// CreateAdmin inserts an admin with the given preferences.
func CreateAdmin(t *testing.T, db *sql.DB, password, indexCode string, receiveEmails bool) *models.Admin {
	t.Helper()
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())
	var id int
	err := db.QueryRow(
		"INSERT INTO admins (email, name, index_code, password_hash, preferences) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		email, "Test Admin", indexCode, HashPassword(t, password),
		fmt.Sprintf(`{"receive_task_emails": %t}`, receiveEmails),
	).Scan(&id)
	require.NoError(t, err)

	admin, err := repository.NewAdminRepository(db).Get(context.Background(), id)
	require.NoError(t, err)
	return admin
}

// CreateTask inserts a task owned by userID.
func CreateTask(t *testing.T, db *sql.DB, userID int, status models.TaskStatus, due time.Time) models.Task {
	t.Helper()
	task := models.Task{
		UserID:   userID,
		Title:    "Quarterly report",
		Priority: models.PriorityMedium,
		Status:   status,
		DueDate:  due,
	}
	require.NoError(t, repository.NewTaskRepository(db).Create(context.Background(), &task))
	return task
}

// CreateUpload attaches content to a task.
func CreateUpload(t *testing.T, db *sql.DB, taskID int, name string, content []byte) models.Upload {
	t.Helper()
	u := models.Upload{
		TaskID:   taskID,
		FileName: name,
		MimeType: "application/pdf",
		Size:     int64(len(content)),
		Content:  content,
	}
	require.NoError(t, repository.NewUploadRepository(db).Create(context.Background(), &u))
	return u
}
