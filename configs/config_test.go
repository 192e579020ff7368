package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("MAX_FAILED_LOGINS", "")
	t.Setenv("LOCKOUT_MINUTES", "")
	t.Setenv("PASSWORD_MAX_AGE_DAYS", "")
	t.Setenv("REPOSITORY_COMMIT_DEDUP", "")
	t.Setenv("BOOTSTRAP_ADMIN_NAME", "")

	cfg := LoadConfig()

	assert.Equal(t, 5, cfg.MaxFailedLogins)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 90*24*time.Hour, cfg.PasswordMaxAge)
	assert.False(t, cfg.CommitDedup)
	assert.Equal(t, "Administrator", cfg.BootstrapAdminName)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("MAX_FAILED_LOGINS", "3")
	t.Setenv("LOCKOUT_MINUTES", "10")
	t.Setenv("REPOSITORY_COMMIT_DEDUP", "true")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, 3, cfg.MaxFailedLogins)
	assert.Equal(t, 10*time.Minute, cfg.LockoutDuration)
	assert.True(t, cfg.CommitDedup)
	assert.Equal(t, 5432, cfg.DBPort)
}

func TestLoadConfigBootstrapAdmin(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@example.com")
	t.Setenv("BOOTSTRAP_ADMIN_NAME", "Root")
	t.Setenv("BOOTSTRAP_ADMIN_INDEX_CODE", "ADM-1")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "changeme123")

	cfg := LoadConfig()

	assert.Equal(t, "root@example.com", cfg.BootstrapAdminEmail)
	assert.Equal(t, "Root", cfg.BootstrapAdminName)
	assert.Equal(t, "ADM-1", cfg.BootstrapAdminIndexCode)
	assert.Equal(t, "changeme123", cfg.BootstrapAdminPassword)
}

func TestCheckJWTSecret(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, LoadConfig().CheckJWTSecret())

	t.Setenv("JWT_SECRET", "a-long-random-signing-key")
	assert.NoError(t, LoadConfig().CheckJWTSecret())
}

func TestBootstrapAdminEnabled(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		want    bool
		wantErr bool
	}{
		{"not configured", Config{}, false, false},
		{"no password", Config{BootstrapAdminEmail: "root@example.com", BootstrapAdminIndexCode: "ADM-1"}, false, false},
		{"missing index code", Config{BootstrapAdminEmail: "root@example.com", BootstrapAdminPassword: "changeme123", BootstrapAdminIndexCode: "  "}, false, true},
		{"complete", Config{BootstrapAdminEmail: "root@example.com", BootstrapAdminPassword: "changeme123", BootstrapAdminIndexCode: "ADM-1"}, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cfg.BootstrapAdminEnabled()
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
