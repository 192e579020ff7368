package config

import (
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
)

var (
	// Process-wide handles, set once in main.
	DB          *sql.DB
	Validate    = validator.New()
	RedisClient *redis.Client
)
