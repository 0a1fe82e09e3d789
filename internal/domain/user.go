package domain

import (
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// User is an account in the system. The password exists only as a bcrypt
// digest; plaintext is never stored or compared.
type User struct {
	Entity
	Username     string `json:"username"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
}

// NewUser builds an unsaved user and hashes the password. The caller
// validates before persisting.
func NewUser(username, email, displayName string, role Role, password string) (*User, error) {
	u := &User{
		Entity:      newEntity(time.Now().UTC()),
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword replaces the stored digest with a salted bcrypt hash of the
// given plaintext.
func (u *User) SetPassword(password string) error {
	if len(password) < 6 {
		return ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.Touch()
	return nil
}

// CheckPassword reports whether the plaintext matches the stored digest.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) Validate() error {
	if !usernameRe.MatchString(u.Username) {
		return ValidationError{Field: "username", Reason: "must be 3-20 characters of letters, digits or underscore"}
	}
	if !emailRe.MatchString(u.Email) {
		return ValidationError{Field: "email", Reason: "malformed address"}
	}
	if u.DisplayName == "" {
		return ValidationError{Field: "display_name", Reason: "required"}
	}
	if !u.Role.Valid() {
		return ValidationError{Field: "role", Reason: "unknown role " + string(u.Role)}
	}
	if u.PasswordHash == "" {
		return ValidationError{Field: "password", Reason: "not set"}
	}
	return nil
}

func (u *User) IsValid() bool { return u.Validate() == nil }
