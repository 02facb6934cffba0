package pat

import "errors"

var (
	// ErrNotAuthenticated means no token was presented, or the presented
	// value does not have the structural "pat_" form.
	ErrNotAuthenticated = errors.New("pat: not authenticated")

	// ErrInvalidToken means the token's digest matches no stored record.
	ErrInvalidToken = errors.New("pat: invalid token")

	// ErrTokenRevoked means the matching record has been revoked.
	ErrTokenRevoked = errors.New("pat: token revoked")

	// ErrTokenExpired means the matching record's expiry has passed.
	ErrTokenExpired = errors.New("pat: token expired")

	// ErrInsufficientScope means the token is valid but none of its grants
	// satisfies the required scope.
	ErrInsufficientScope = errors.New("pat: insufficient scope")

	ErrNotFound     = errors.New("pat: not found")
	ErrInvalidInput = errors.New("pat: invalid input")
)
