package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"staff-tracker/configs"
	"staff-tracker/pkg/logger"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DSN builds a lib/pq connection string for dbName.
func DSN(cfg configs.Config, dbName string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, dbName)
}

func ConnectDB(cfg configs.Config) *sql.DB {
	db, err := sql.Open("postgres", DSN(cfg, cfg.DBName))
	if err != nil {
		logger.ErrorLogger.Error("Failed to open database", zap.Error(err))
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		logger.ErrorLogger.Error("Failed to ping database", zap.Error(err))
		log.Fatalf("Failed to ping database: %v", err)
	}
	return db
}
