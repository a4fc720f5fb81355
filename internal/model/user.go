package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	Create(ctx context.Context, user User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
}

// User represents a stored user with its password material.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Salt         string
	CreatedAt    time.Time
}

// Credentials is the email/password pair submitted by a client.
type Credentials struct {
	Email    string
	Password string
}
