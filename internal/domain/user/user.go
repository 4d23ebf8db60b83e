package user

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for user lookup and registration.
var (
	ErrNotFound   = fmt.Errorf("user not found")
	ErrEmailTaken = fmt.Errorf("email already in use")
)

// Role controls route access. Administrators manage the catalog and drive
// order fulfillment; customers place orders and submit reviews.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// Repository defines persistence operations for users.
type Repository interface {
	// Create persists a new user. It returns ErrEmailTaken when the email is
	// already registered.
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
