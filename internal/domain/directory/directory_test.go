package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		expected string
	}{
		{"full name", &User{FullName: "Alice Liddell", Username: "alice"}, "Alice Liddell"},
		{"username fallback", &User{FullName: " ", Username: "alice"}, "alice"},
		{"anonymous", &User{}, "Someone"},
		{"nil user", nil, "Someone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.DisplayName())
		})
	}
}

func TestUser_HasEmail(t *testing.T) {
	assert.True(t, (&User{Email: "a@example.com"}).HasEmail())
	assert.False(t, (&User{Email: "  "}).HasEmail())
	assert.False(t, (*User)(nil).HasEmail())
}
