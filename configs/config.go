package configs

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int

	JWTSecret string
	TokenTTL  time.Duration

	SMTPServer   string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	LogDir        string
	UploadDir     string
	RepositoryDir string
	// CommitDedup makes repository commits skip files already committed from
	// the same task under the same name.
	CommitDedup bool

	// BootstrapAdmin* seed one admin at startup when email and password are set.
	BootstrapAdminEmail     string
	BootstrapAdminName      string
	BootstrapAdminIndexCode string
	BootstrapAdminPassword  string

	MaxFailedLogins    int
	LockoutDuration    time.Duration
	PasswordMaxAge     time.Duration
	RedisCacheDisabled bool
}

// DefaultJWTSecret is the JWT_SECRET fallback. Servers refuse to start with it.
const DefaultJWTSecret = "secret"

func LoadConfig() Config {
	// Muat file .env
	if err := godotenv.Load(); err != nil {
		// Hanya log jika tidak dalam mode test
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	return Config{
		AppPort: envInt("APP_PORT", 3004),

		DBHost:     envString("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),
		RedisHost:  envString("REDIS_HOST", "localhost"),
		RedisPort:  envInt("REDIS_PORT", 6379),

		JWTSecret: envString("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:  time.Duration(envInt("TOKEN_TTL_MINUTES", 60)) * time.Minute,

		SMTPServer:   os.Getenv("SMTP_SERVER"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     envString("SMTP_FROM", os.Getenv("SMTP_USER")),

		LogDir:        envString("LOG_DIR", "logs"),
		UploadDir:     envString("UPLOAD_DIR", "uploads"),
		RepositoryDir: envString("REPOSITORY_DIR", "repository"),
		CommitDedup:   envBool("REPOSITORY_COMMIT_DEDUP", false),

		BootstrapAdminEmail:     os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminName:      envString("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		BootstrapAdminIndexCode: os.Getenv("BOOTSTRAP_ADMIN_INDEX_CODE"),
		BootstrapAdminPassword:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		MaxFailedLogins:    envInt("MAX_FAILED_LOGINS", 5),
		LockoutDuration:    time.Duration(envInt("LOCKOUT_MINUTES", 30)) * time.Minute,
		PasswordMaxAge:     time.Duration(envInt("PASSWORD_MAX_AGE_DAYS", 90)) * 24 * time.Hour,
		RedisCacheDisabled: envBool("REDIS_CACHE_DISABLED", false),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// CheckJWTSecret fails when tokens would be signed with the built-in key.
func (c Config) CheckJWTSecret() error {
	if c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET is not set; refusing to sign tokens with the default key")
	}
	return nil
}

// BootstrapAdminEnabled reports whether an admin should be seeded at
// startup. Email and password turn seeding on; without an index code the
// admin could never log in, so that case is an error.
func (c Config) BootstrapAdminEnabled() (bool, error) {
	if c.BootstrapAdminEmail == "" || c.BootstrapAdminPassword == "" {
		return false, nil
	}
	if strings.TrimSpace(c.BootstrapAdminIndexCode) == "" {
		return false, errors.New("BOOTSTRAP_ADMIN_INDEX_CODE is required to seed an admin")
	}
	return true, nil
}
