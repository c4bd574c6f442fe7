package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var identityNumberRe = regexp.MustCompile(`^\d{10}$`)

// Passenger is a reservation profile. It is kept alive by its reservations or by a linked account.
type Passenger struct {
	ID             int64     `json:"id"`
	UserName       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	MiddleName     string    `json:"middle_name"`
	LastName       string    `json:"last_name"`
	IdentityNumber string    `json:"identity_number"`
	Address        string    `json:"address"`
	PhoneNumber    string    `json:"phone_number"`
	Email          string    `json:"email,omitempty"`
	AccountID      *int64    `json:"account_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Claimed reports whether the profile is linked to a registered account.
func (p Passenger) Claimed() bool {
	return p.AccountID != nil
}

func (p Passenger) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func ValidateIdentityNumber(s string) error {
	if !identityNumberRe.MatchString(s) {
		return fmt.Errorf("%w: identity number must be 10 digits", ErrValidation)
	}
	return nil
}

func (p *Passenger) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"username", p.UserName},
		{"first_name", p.FirstName},
		{"middle_name", p.MiddleName},
		{"last_name", p.LastName},
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.name)
		}
		if len(v) > 50 {
			return fmt.Errorf("%w: %s must be at most 50 characters", ErrValidation, f.name)
		}
	}
	if err := ValidateIdentityNumber(p.IdentityNumber); err != nil {
		return err
	}
	if strings.TrimSpace(p.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		return fmt.Errorf("%w: phone_number is required", ErrValidation)
	}
	return nil
}
