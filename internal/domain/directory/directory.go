package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// User is a read-only view of an account in the identity store.
type User struct {
	ID       string
	Email    string
	FullName string
	Username string
}

// DisplayName falls back from full name to username to "Someone".
func (u *User) DisplayName() string {
	if u == nil {
		return "Someone"
	}
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	return "Someone"
}

// HasEmail reports whether the user can receive email.
func (u *User) HasEmail() bool {
	return u != nil && strings.TrimSpace(u.Email) != ""
}

// Users resolves directory users. Both lookups return (nil, nil) when no
// user matches.
type Users interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	// FindByUsername matches case-insensitively
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// Projects resolves project names. Unknown projects yield an empty name.
type Projects interface {
	ProjectName(ctx context.Context, id uuid.UUID) (string, error)
}
