package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/kobukuro/fcsvault/internal/audit"
	"github.com/kobukuro/fcsvault/internal/auth"
	"github.com/kobukuro/fcsvault/internal/obs"
	"github.com/kobukuro/fcsvault/internal/pat"
	"github.com/kobukuro/fcsvault/internal/storage"
	"github.com/kobukuro/fcsvault/internal/upload"
)

// ReadyProbe reports whether the service can serve traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	ReadyProbe ReadyProbe
	Version    string

	Auth     *auth.Service
	Sessions *auth.SessionManager
	Engine   *pat.Engine
	Tokens   *pat.Service
	Recorder *audit.Recorder

	Coordinator *upload.Coordinator
	Artifacts   upload.ArtifactStore
	Backend     storage.Backend

	MaxBodyBytes  int64
	RatePerSecond int
	RateBurst     int
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	deps Deps
}

func New(deps Deps) *API {
	a := &API{
		mux:  http.NewServeMux(),
		deps: deps,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// Account and session surface; public.
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	// Token management surface; session authenticated.
	a.mux.HandleFunc("/v1/scopes", a.handleScopes)
	a.mux.HandleFunc("/v1/tokens", a.handleTokens)
	a.mux.HandleFunc("/v1/tokens/", a.handleTokenScoped)

	// Data plane; PAT authenticated, scope gated, audited.
	a.mux.HandleFunc("/v1/uploads", a.handleUploads)
	a.mux.HandleFunc("/v1/uploads/", a.handleUploadScoped)
	a.mux.HandleFunc("/v1/files", a.handleFiles)
	a.mux.HandleFunc("/v1/files/", a.handleFileScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.deps.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.deps.MaxBodyBytes)
	}
	if a.deps.RatePerSecond > 0 {
		h = RateLimit(h, a.deps.RateBurst, a.deps.RatePerSecond)
	}
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fcsvault-api",
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.deps.ReadyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
