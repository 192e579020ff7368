package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"staff-tracker/internal/models"
)

// LoginFailure is the counter state after a failed attempt was recorded.
type LoginFailure struct {
	Attempts    int
	LockedUntil *time.Time
}

// AccountRepository is the credential store for one account variant.
type AccountRepository interface {
	// FindForLogin looks an account up by email. Admins also need a matching
	// index code; users ignore it.
	FindForLogin(ctx context.Context, email, indexCode string) (models.Account, error)
	FindByID(ctx context.Context, id int) (models.Account, error)
	// RecordFailedLogin increments the counter in one statement. When the
	// new count reaches threshold, locked_until becomes lockUntil. An account
	// whose previous lock expired before now restarts counting at 1.
	RecordFailedLogin(ctx context.Context, id, threshold int, lockUntil, now time.Time) (LoginFailure, error)
	// ResetLoginState clears the counter and lock in one statement unless a
	// lock still active at now is in place. It then returns that lock and
	// changes nothing.
	ResetLoginState(ctx context.Context, id int, now time.Time) (*time.Time, error)
	UpdatePassword(ctx context.Context, id int, hash string, changedAt time.Time) error
}

// Accounts selects the repository for a role.
type Accounts struct {
	Users  *UserRepository
	Admins *AdminRepository
}

func NewAccounts(db *sql.DB) *Accounts {
	return &Accounts{Users: NewUserRepository(db), Admins: NewAdminRepository(db)}
}

func (a *Accounts) ForRole(role models.Role) (AccountRepository, error) {
	switch role {
	case models.RoleUser:
		return a.Users, nil
	case models.RoleAdmin:
		return a.Admins, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

const userColumns = `id, email, name, department, password_hash, failed_login_attempts,
	locked_until, password_changed_at, profile_picture, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var lockedUntil sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Department, &u.PasswordHash, &u.FailedLoginAttempts,
		&lockedUntil, &u.PasswordChangedAt, &u.ProfilePicture, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		u.LockedUntil = &lockedUntil.Time
	}
	return &u, nil
}

func (r *UserRepository) FindForLogin(ctx context.Context, email, _ string) (models.Account, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (models.Account, error) {
	return r.Get(ctx, id)
}

func (r *UserRepository) Get(ctx context.Context, id int) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepository) RecordFailedLogin(ctx context.Context, id, threshold int, lockUntil, now time.Time) (LoginFailure, error) {
	var f LoginFailure
	var locked sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN 1
				ELSE failed_login_attempts + 1
			END,
			locked_until = CASE
				WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN 1
					ELSE failed_login_attempts + 1 END) >= $2 THEN $3
				WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN NULL
				ELSE locked_until
			END
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until`,
		id, threshold, lockUntil, now,
	).Scan(&f.Attempts, &locked)
	if err != nil {
		return f, notFound(err)
	}
	if locked.Valid {
		f.LockedUntil = &locked.Time
	}
	return f, nil
}

func (r *UserRepository) ResetLoginState(ctx context.Context, id int, now time.Time) (*time.Time, error) {
	return scanActiveLock(r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_attempts = CASE WHEN locked_until > $2 THEN failed_login_attempts ELSE 0 END,
			locked_until = CASE WHEN locked_until > $2 THEN locked_until ELSE NULL END
		WHERE id = $1
		RETURNING locked_until`, id, now))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, password_changed_at = $2 WHERE id = $3", hash, changedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Create inserts a user. A taken email returns ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, department, password_hash, password_changed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		u.Email, u.Name, u.Department, u.PasswordHash, u.PasswordChangedAt,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateProfilePicture(ctx context.Context, id int, url string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET profile_picture = $1 WHERE id = $2", url, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes a user with all owned tasks and their uploads in one
// transaction. Committed repository files keep existing with a NULL source.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id = $1 FOR UPDATE", id).Scan(&exists)
		if err != nil {
			return notFound(err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM uploads WHERE task_id IN (SELECT id FROM tasks WHERE user_id = $1)", id); err != nil {
			return fmt.Errorf("deleting uploads: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = $1", id); err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
}

func scanActiveLock(row *sql.Row) (*time.Time, error) {
	var locked sql.NullTime
	if err := row.Scan(&locked); err != nil {
		return nil, notFound(err)
	}
	if !locked.Valid {
		return nil, nil
	}
	return &locked.Time, nil
}

type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository { return &AdminRepository{db: db} }

const adminColumns = `id, email, name, index_code, password_hash, failed_login_attempts,
	locked_until, password_changed_at, preferences, created_at`

func scanAdmin(row interface{ Scan(...interface{}) error }) (*models.Admin, error) {
	var a models.Admin
	var lockedUntil sql.NullTime
	var prefs []byte
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.IndexCode, &a.PasswordHash, &a.FailedLoginAttempts,
		&lockedUntil, &a.PasswordChangedAt, &prefs, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		a.LockedUntil = &lockedUntil.Time
	}
	a.PreferencesBlob = prefs
	// A malformed blob leaves default preferences, the row stays usable.
	a.Preferences, _ = models.ParsePreferences(prefs)
	return &a, nil
}

func (r *AdminRepository) FindForLogin(ctx context.Context, email, indexCode string) (models.Account, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admins WHERE email = $1 AND index_code = $2", email, indexCode))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *AdminRepository) FindByID(ctx context.Context, id int) (models.Account, error) {
	return r.Get(ctx, id)
}

func (r *AdminRepository) Get(ctx context.Context, id int) (*models.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admins WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *AdminRepository) RecordFailedLogin(ctx context.Context, id, threshold int, lockUntil, now time.Time) (LoginFailure, error) {
	var f LoginFailure
	var locked sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		UPDATE admins
		SET failed_login_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN 1
				ELSE failed_login_attempts + 1
			END,
			locked_until = CASE
				WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN 1
					ELSE failed_login_attempts + 1 END) >= $2 THEN $3
				WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN NULL
				ELSE locked_until
			END
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until`,
		id, threshold, lockUntil, now,
	).Scan(&f.Attempts, &locked)
	if err != nil {
		return f, notFound(err)
	}
	if locked.Valid {
		f.LockedUntil = &locked.Time
	}
	return f, nil
}

func (r *AdminRepository) ResetLoginState(ctx context.Context, id int, now time.Time) (*time.Time, error) {
	return scanActiveLock(r.db.QueryRowContext(ctx, `
		UPDATE admins
		SET failed_login_attempts = CASE WHEN locked_until > $2 THEN failed_login_attempts ELSE 0 END,
			locked_until = CASE WHEN locked_until > $2 THEN locked_until ELSE NULL END
		WHERE id = $1
		RETURNING locked_until`, id, now))
}

func (r *AdminRepository) UpdatePassword(ctx context.Context, id int, hash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE admins SET password_hash = $1, password_changed_at = $2 WHERE id = $3", hash, changedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListAdmins returns every admin with its parsed preferences.
func (r *AdminRepository) ListAdmins(ctx context.Context) ([]*models.Admin, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+adminColumns+" FROM admins ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	admins := []*models.Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (r *AdminRepository) UpdatePreferences(ctx context.Context, id int, prefs models.AdminPreferences) error {
	blob, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE admins SET preferences = $1 WHERE id = $2", string(blob), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
