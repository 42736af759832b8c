package sessions

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// PasswordChecker verifies the shared staff password against a bcrypt hash.
type PasswordChecker struct {
	hash []byte
}

func NewPasswordChecker(hash string) *PasswordChecker {
	return &PasswordChecker{hash: []byte(hash)}
}

func (c *PasswordChecker) Verify(password string) error {
	if len(c.hash) == 0 || password == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func HashPassword(password string) (string, error) {
	raw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
