package model

import "errors"

// Storage errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Authentication errors. Each maps to exactly one HTTP status.
var (
	ErrMissingCredentials = errors.New("email and password required")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many attempts")
	ErrInvalidToken       = errors.New("invalid token")
)

// ErrMissingToken is returned when a request carries no token at all.
var ErrMissingToken = errors.New("token required")
