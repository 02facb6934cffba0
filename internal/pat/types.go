package pat

import "time"

// Token is a persisted Personal Access Token record. The raw token value
// exists only at issuance time; only its digest and display prefix are kept.
type Token struct {
	ID         string
	UserID     string
	Name       string
	Prefix     string
	Digest     string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Revoked    bool
}

// Scope is a (resource, action) pair with a numeric level inside the
// resource's hierarchy. Name is always resource + ":" + action.
type Scope struct {
	ID       int64
	Resource string
	Action   string
	Name     string
	Level    int
}

// Decision is the outcome of one authorization check. It is ephemeral:
// persistence of decisions is the audit recorder's concern.
type Decision struct {
	Authorized    bool
	TokenID       string
	UserID        string
	RequiredScope string
	GrantedBy     string
	Reason        string
}

// Failure reasons recorded on unauthorized decisions. Stable tags: the HTTP
// layer may normalize what the caller sees, audit keeps the distinction.
const (
	ReasonNotAuthenticated  = "not_authenticated"
	ReasonInvalidToken      = "invalid_token"
	ReasonTokenRevoked      = "token_revoked"
	ReasonTokenExpired      = "token_expired"
	ReasonInsufficientScope = "insufficient_scope"
)
