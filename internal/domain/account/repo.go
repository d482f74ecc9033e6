package account

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrHealthIDTaken = errors.New("health id already issued")
)

// UserRepository is the identity store. Create is an atomic
// check-and-insert on both email and health id.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByHealthID(ctx context.Context, healthID string) (*User, error)
}
