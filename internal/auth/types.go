package auth

import "time"

// User is an account that owns tokens and uploads.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AuthMethod tells how a request was authenticated.
type AuthMethod string

const (
	MethodSession AuthMethod = "session"
	MethodPAT     AuthMethod = "pat"
)

// Principal is the authenticated identity attached to a request context.
// TokenID is set only for PAT-authenticated requests.
type Principal struct {
	UserID  string
	Method  AuthMethod
	TokenID string
}
