package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type Role string

const (
	RoleOwner    Role = "Owner"
	RoleAdmin    Role = "Admin"
	RoleEmployee Role = "Employee"
	RoleUser     Role = "User"
)

var knownRoles = map[Role]bool{
	RoleOwner:    true,
	RoleAdmin:    true,
	RoleEmployee: true,
	RoleUser:     true,
}

func ParseRoles(names []string) ([]Role, error) {
	roles := make([]Role, 0, len(names))
	seen := make(map[Role]bool, len(names))
	for _, n := range names {
		r := Role(strings.TrimSpace(n))
		if !knownRoles[r] {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, n)
		}
		if !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	return roles, nil
}

type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	UserName     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a Account) HasRole(roles ...Role) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

func ValidateEmail(s string) error {
	if _, err := mail.ParseAddress(s); err != nil || !strings.Contains(s, "@") {
		return fmt.Errorf("%w: invalid email address %q", ErrValidation, s)
	}
	return nil
}
