package audit

import "time"

// Record is one authorization decision captured for a gated request. TokenID
// is empty when the request never resolved to a token.
type Record struct {
	ID            string
	TokenID       string
	UserID        string
	Method        string
	Path          string
	Status        int
	RequiredScope string
	Authorized    bool
	Reason        string
	ClientIP      string
	CreatedAt     time.Time
}
