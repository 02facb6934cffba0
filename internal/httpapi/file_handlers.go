package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kobukuro/fcsvault/internal/auth"
	"github.com/kobukuro/fcsvault/internal/obs"
	"github.com/kobukuro/fcsvault/internal/upload"
)

type fileView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Size           int64     `json:"size"`
	EventCount     int64     `json:"event_count"`
	ParameterCount int       `json:"parameter_count"`
	Public         bool      `json:"public"`
	CreatedAt      time.Time `json:"created_at"`
}

func viewArtifact(a *upload.Artifact) fileView {
	return fileView{
		ID:             a.ID,
		Name:           a.Name,
		Size:           a.Size,
		EventCount:     a.EventCount,
		ParameterCount: a.ParameterCount,
		Public:         a.Public,
		CreatedAt:      a.CreatedAt,
	}
}

func (a *API) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	a.gated("fcs:read", a.listFiles)(w, r)
}

func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	files, err := a.deps.Artifacts.ListByUser(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list files")
		return
	}
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		out = append(out, viewArtifact(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

func (a *API) handleFileScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/files/"), "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(rest, "/")
	fileID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		a.gated("fcs:read", func(w http.ResponseWriter, r *http.Request) {
			a.getFile(w, r, fileID)
		})(w, r)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		a.gated("fcs:write", func(w http.ResponseWriter, r *http.Request) {
			a.deleteFile(w, r, fileID)
		})(w, r)
	case len(parts) == 2 && parts[1] == "download" && r.Method == http.MethodGet:
		a.gated("fcs:read", func(w http.ResponseWriter, r *http.Request) {
			a.downloadFile(w, r, fileID)
		})(w, r)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

// findFile loads an artifact visible to the principal: their own, or a public
// one. A foreign private file looks like a missing one.
func (a *API) findFile(r *http.Request, fileID string) (*upload.Artifact, error) {
	principal, _ := auth.PrincipalFrom(r.Context())
	artifact, err := a.deps.Artifacts.Find(r.Context(), fileID)
	if err != nil {
		return nil, err
	}
	if artifact.UserID != principal.UserID && !artifact.Public {
		return nil, upload.ErrNotFound
	}
	return artifact, nil
}

func (a *API) getFile(w http.ResponseWriter, r *http.Request, fileID string) {
	artifact, err := a.findFile(r, fileID)
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load file")
		return
	}
	writeJSON(w, http.StatusOK, viewArtifact(artifact))
}

func (a *API) downloadFile(w http.ResponseWriter, r *http.Request, fileID string) {
	artifact, err := a.findFile(r, fileID)
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load file")
		return
	}
	rc, err := a.deps.Backend.Open(r.Context(), artifact.Location)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Name+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		obs.LogError("file download interrupted", map[string]any{
			"file_id": fileID, "error": err.Error(),
		})
	}
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request, fileID string) {
	principal, _ := auth.PrincipalFrom(r.Context())
	artifact, err := a.deps.Artifacts.Find(r.Context(), fileID)
	if err != nil || artifact.UserID != principal.UserID {
		// Only the owner deletes; public visibility grants read, not write.
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err := a.deps.Artifacts.Delete(r.Context(), fileID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete file")
		return
	}
	if err := a.deps.Backend.Delete(r.Context(), artifact.Location); err != nil {
		obs.LogError("file bytes not deleted", map[string]any{
			"file_id": fileID, "error": err.Error(),
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
