// Package account defines the user record the authentication core operates on
// and the repositories that persist it.
//
// Repositories expose Update as their single read-modify-write primitive. The
// lockout counters on an account are shared between concurrent logins, so
// every check-verify-record sequence must run inside one Update call.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Profile holds optional display fields.
type Profile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Account is a registered user.
type Account struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"password_hash"`
	IsActive          bool       `json:"is_active"`
	FailedAttempts    int        `json:"failed_attempts"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	TokenVersion      int        `json:"token_version"`
	Profile           Profile    `json:"profile"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UpdateFunc transforms an account inside Repository.Update. Returning an
// error aborts the update without writing. Implementations run fn at most
// once per call, holding a lock on that account only.
type UpdateFunc func(Account) (Account, error)

// Repository persists accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (Account, error)
	Create(ctx context.Context, acct Account) (Account, error)
	Save(ctx context.Context, acct Account) error
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (Account, error)
}

// NormalizeEmail trims, NFC-normalizes and lower-cases an address for
// storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

// clone returns a copy that shares no pointers with a.
func (a Account) clone() Account {
	a.LockedUntil = copyTime(a.LockedUntil)
	a.LastLoginAt = copyTime(a.LastLoginAt)
	a.PasswordChangedAt = copyTime(a.PasswordChangedAt)
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
