package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kobukuro/fcsvault/internal/pat"
)

type createTokenRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// tokenView is the wire shape of a token record. The digest never leaves the
// service; only the display prefix does.
type tokenView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Revoked    bool       `json:"revoked"`
}

func viewToken(t *pat.Token) tokenView {
	return tokenView{
		ID:         t.ID,
		Name:       t.Name,
		Prefix:     t.Prefix,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
		LastUsedAt: t.LastUsedAt,
		Revoked:    t.Revoked,
	}
}

func (a *API) handleScopes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	a.sessioned(func(w http.ResponseWriter, r *http.Request, _ string) {
		scopes, err := a.deps.Tokens.Scopes(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not list scopes")
			return
		}
		type scopeView struct {
			Name     string `json:"name"`
			Resource string `json:"resource"`
			Action   string `json:"action"`
			Level    int    `json:"level"`
		}
		out := make([]scopeView, 0, len(scopes))
		for _, s := range scopes {
			out = append(out, scopeView{Name: s.Name, Resource: s.Resource, Action: s.Action, Level: s.Level})
		}
		writeJSON(w, http.StatusOK, map[string]any{"scopes": out})
	})(w, r)
}

func (a *API) handleTokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.sessioned(a.createToken)(w, r)
	case http.MethodGet:
		a.sessioned(a.listTokens)(w, r)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createToken(w http.ResponseWriter, r *http.Request, userID string) {
	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, token, err := a.deps.Tokens.Issue(r.Context(), userID, req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, pat.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		// The only response that ever carries the raw token.
		"token":  raw,
		"record": viewToken(token),
	})
}

func (a *API) listTokens(w http.ResponseWriter, r *http.Request, userID string) {
	tokens, err := a.deps.Tokens.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list tokens")
		return
	}
	out := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, viewToken(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func (a *API) handleTokenScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tokens/"), "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(rest, "/")
	tokenID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		a.sessioned(func(w http.ResponseWriter, r *http.Request, userID string) {
			a.getToken(w, r, userID, tokenID)
		})(w, r)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		a.sessioned(func(w http.ResponseWriter, r *http.Request, userID string) {
			a.revokeToken(w, r, userID, tokenID)
		})(w, r)
	case len(parts) == 2 && parts[1] == "logs" && r.Method == http.MethodGet:
		a.sessioned(func(w http.ResponseWriter, r *http.Request, userID string) {
			a.tokenLogs(w, r, userID, tokenID)
		})(w, r)
	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "logs"):
		writeError(w, http.StatusNotFound, "resource not found")
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) getToken(w http.ResponseWriter, r *http.Request, userID, tokenID string) {
	token, err := a.deps.Tokens.Get(r.Context(), userID, tokenID)
	if err != nil {
		if errors.Is(err, pat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load token")
		return
	}
	grants, err := a.deps.Tokens.Grants(r.Context(), userID, tokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load token")
		return
	}
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		names = append(names, g.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record": viewToken(token),
		"scopes": names,
	})
}

func (a *API) revokeToken(w http.ResponseWriter, r *http.Request, userID, tokenID string) {
	if err := a.deps.Tokens.Revoke(r.Context(), userID, tokenID); err != nil {
		if errors.Is(err, pat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not revoke token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) tokenLogs(w http.ResponseWriter, r *http.Request, userID, tokenID string) {
	// Ownership first: logs of another user's token look like a missing token.
	if _, err := a.deps.Tokens.Get(r.Context(), userID, tokenID); err != nil {
		if errors.Is(err, pat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load token")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := a.deps.Recorder.List(r.Context(), tokenID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load logs")
		return
	}
	type logView struct {
		Method        string    `json:"method"`
		Path          string    `json:"path"`
		Status        int       `json:"status"`
		RequiredScope string    `json:"required_scope"`
		Authorized    bool      `json:"authorized"`
		Reason        string    `json:"reason,omitempty"`
		ClientIP      string    `json:"client_ip"`
		CreatedAt     time.Time `json:"created_at"`
	}
	out := make([]logView, 0, len(records))
	for _, rec := range records {
		out = append(out, logView{
			Method:        rec.Method,
			Path:          rec.Path,
			Status:        rec.Status,
			RequiredScope: rec.RequiredScope,
			Authorized:    rec.Authorized,
			Reason:        rec.Reason,
			ClientIP:      rec.ClientIP,
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": out})
}
