// Package testutil starts the throwaway PostgreSQL used by integration tests.
package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"staff-tracker/configs"
	"staff-tracker/internal/repository"
	"staff-tracker/pkg/database"
	"staff-tracker/pkg/logger"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/zap"
)

// StartPostgres returns a database with a fresh schema. With DB_NAME_TEST set
// it resets and uses that database; otherwise it runs a postgres container.
// When neither is reachable it returns a nil db and a no-op cleanup so the
// caller's tests can skip instead of fail.
func StartPostgres() (*sql.DB, func()) {
	noop := func() {}

	if cfg := configs.LoadConfig(); cfg.DBNameTest != "" {
		return useTestDatabase(cfg)
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		logger.SystemLogger.Warn("Docker unavailable, skipping database tests", zap.Error(err))
		return nil, noop
	}
	if err := pool.Client.Ping(); err != nil {
		logger.SystemLogger.Warn("Docker unavailable, skipping database tests", zap.Error(err))
		return nil, noop
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=tracker",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=tracker_test",
			"listen_addresses = '*'",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start postgres: %v\n", err)
		return nil, noop
	}
	_ = resource.Expire(300)

	dsn := fmt.Sprintf("postgres://tracker:secret@%s/tracker_test?sslmode=disable", resource.GetHostPort("5432/tcp"))
	var db *sql.DB
	pool.MaxWait = 2 * time.Minute
	err = pool.Retry(func() error {
		var err error
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		return db.Ping()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to postgres: %v\n", err)
		_ = pool.Purge(resource)
		return nil, noop
	}

	if err := repository.CreateTableIfNotExists(db); err != nil {
		fmt.Fprintf(os.Stderr, "could not create schema: %v\n", err)
		_ = db.Close()
		_ = pool.Purge(resource)
		return nil, noop
	}

	return db, func() {
		_ = db.Close()
		_ = pool.Purge(resource)
	}
}

func useTestDatabase(cfg configs.Config) (*sql.DB, func()) {
	db, err := sql.Open("postgres", database.DSN(cfg, cfg.DBNameTest))
	if err == nil {
		err = db.Ping()
	}
	if err == nil {
		err = repository.DeleteAllTable(db)
	}
	if err == nil {
		err = repository.CreateTableIfNotExists(db)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not prepare %s: %v\n", cfg.DBNameTest, err)
		if db != nil {
			_ = db.Close()
		}
		return nil, func() {}
	}
	return db, func() {
		_ = repository.DeleteAllTable(db)
		_ = db.Close()
	}
}

// RequireDB skips t when no database was started.
func RequireDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		t.Skip("postgres container not available")
	}
}

// Truncate empties every table and resets ids.
func Truncate(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE repository_files, uploads, tasks, predefined_tasks, categories, admins, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
