package tasks_test

import (
	"database/sql"
	"os"
	"testing"

	"staff-tracker/internal/testutil"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")

	var cleanup func()
	testDB, cleanup = testutil.StartPostgres()

	code := m.Run()
	cleanup()
	os.Exit(code)
}
