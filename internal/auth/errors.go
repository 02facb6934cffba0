package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidSession     = errors.New("auth: invalid session")
	ErrUserExists         = errors.New("auth: user already exists")
	ErrNotFound           = errors.New("auth: user not found")
	ErrInvalidInput       = errors.New("auth: invalid input")
)
