package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// AuthenticatedContext is the identity established by the session layer for
// one request. Every core operation receives it explicitly.
type AuthenticatedContext struct {
	AccountID int
	Role      Role
}

func (a AuthenticatedContext) IsAdmin() bool { return a.Role == RoleAdmin }

// Credential holds the login state shared by users and admins.
type Credential struct {
	ID                  int        `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	PasswordChangedAt   time.Time  `json:"password_changed_at"`
}

// Account is either a *User or an *Admin.
type Account interface {
	Credentials() *Credential
	Role() Role
	DisplayName() string
}

type User struct {
	Credential
	Name           string         `json:"name"`
	Department     string         `json:"department"`
	ProfilePicture sql.NullString `json:"profile_picture"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (u *User) Credentials() *Credential { return &u.Credential }
func (u *User) Role() Role               { return RoleUser }
func (u *User) DisplayName() string      { return u.Name }

type Admin struct {
	Credential
	Name        string           `json:"name"`
	IndexCode   string           `json:"-"`
	Preferences AdminPreferences `json:"preferences"`
	// PreferencesBlob is the stored JSON as read from the database.
	PreferencesBlob []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

func (a *Admin) Credentials() *Credential { return &a.Credential }
func (a *Admin) Role() Role               { return RoleAdmin }
func (a *Admin) DisplayName() string      { return a.Name }

// AdminPreferences is stored as a JSON blob on the admins table.
type AdminPreferences struct {
	ReceiveTaskEmails bool `json:"receive_task_emails"`
}

func ParsePreferences(blob []byte) (AdminPreferences, error) {
	var p AdminPreferences
	if len(blob) == 0 {
		return p, nil
	}
	err := json.Unmarshal(blob, &p)
	return p, err
}
