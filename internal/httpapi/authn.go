package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kobukuro/fcsvault/internal/audit"
	"github.com/kobukuro/fcsvault/internal/auth"
	"github.com/kobukuro/fcsvault/internal/obs"
	"github.com/kobukuro/fcsvault/internal/pat"
)

// gated wraps a data-plane handler with PAT authorization for requiredScope.
// Exactly one audit record is emitted per request through here, carrying the
// decision and the final response status. Authentication failures all look
// the same to the caller; the audit record keeps the real reason.
func (a *API) gated(requiredScope string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := extractBearerToken(r.Header.Get("Authorization"))

		decision, err := a.deps.Engine.Authorize(r.Context(), raw, requiredScope)
		if err != nil {
			status := statusForAuthz(err)
			if status == http.StatusInternalServerError {
				writeError(w, status, "authorization error")
			} else if status == http.StatusForbidden {
				writeError(w, status, "insufficient scope")
			} else {
				writeError(w, status, "unauthorized")
			}
			a.recordAudit(r, decision, status)
			return
		}
		obs.ObserveAuthzDecision("allowed")

		principal := auth.Principal{
			UserID:  decision.UserID,
			Method:  auth.MethodPAT,
			TokenID: decision.TokenID,
		}
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			// The audit record must land even when the handler panics.
			if p := recover(); p != nil {
				obs.LogError("handler panic", map[string]any{
					"method": r.Method, "path": r.URL.Path, "panic": fmt.Sprint(p),
				})
				sw.code = http.StatusInternalServerError
				if !sw.wrote {
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}
			a.recordAudit(r, decision, sw.code)
		}()
		h(sw, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	}
}

func (a *API) recordAudit(r *http.Request, d pat.Decision, status int) {
	if !d.Authorized {
		obs.ObserveAuthzDecision(d.Reason)
	}
	a.deps.Recorder.Record(audit.Record{
		TokenID:       d.TokenID,
		UserID:        d.UserID,
		Method:        r.Method,
		Path:          r.URL.Path,
		Status:        status,
		RequiredScope: d.RequiredScope,
		Authorized:    d.Authorized,
		Reason:        d.Reason,
		ClientIP:      clientIP(r),
	})
}

// statusForAuthz maps authorization failures to response codes. All
// authentication problems collapse to 401 so callers cannot distinguish a
// revoked token from an unknown one.
func statusForAuthz(err error) int {
	switch {
	case errors.Is(err, pat.ErrNotAuthenticated),
		errors.Is(err, pat.ErrInvalidToken),
		errors.Is(err, pat.ErrTokenRevoked),
		errors.Is(err, pat.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, pat.ErrInsufficientScope):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// sessioned wraps a management handler with session authentication.
func (a *API) sessioned(h func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		userID, err := a.deps.Sessions.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{UserID: userID, Method: auth.MethodSession})
		h(w, r.WithContext(ctx), userID)
	}
}
