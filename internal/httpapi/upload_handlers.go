package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kobukuro/fcsvault/internal/auth"
	"github.com/kobukuro/fcsvault/internal/upload"
)

type initiateUploadRequest struct {
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	ChunkSize int64  `json:"chunk_size"`
	Public    bool   `json:"public"`
}

type taskView struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ChunkSize   int64     `json:"chunk_size"`
	Public      bool      `json:"public"`
	TotalChunks int       `json:"total_chunks"`
	Received    int       `json:"received_chunks"`
	Progress    float64   `json:"progress"`
	Status      string    `json:"status"`
	FileID      string    `json:"file_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func viewTask(t *upload.Task) taskView {
	return taskView{
		ID:          t.ID,
		FileName:    t.FileName,
		FileSize:    t.FileSize,
		ChunkSize:   t.ChunkSize,
		Public:      t.Public,
		TotalChunks: t.TotalChunks,
		Received:    t.Received,
		Progress:    t.Progress(),
		Status:      string(t.Status),
		FileID:      t.FileID,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (a *API) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	a.gated("fcs:write", a.initiateUpload)(w, r)
}

func (a *API) initiateUpload(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	var req initiateUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := a.deps.Coordinator.Initiate(r.Context(), principal.UserID, req.FileName, req.FileSize, req.ChunkSize, req.Public)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "file_name, file_size and chunk_size are required")
		case errors.Is(err, upload.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		default:
			writeError(w, http.StatusInternalServerError, "could not start upload")
		}
		return
	}
	writeJSON(w, http.StatusCreated, viewTask(task))
}

func (a *API) handleUploadScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/uploads/"), "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(rest, "/")
	taskID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		a.gated("fcs:read", func(w http.ResponseWriter, r *http.Request) {
			a.uploadStatus(w, r, taskID)
		})(w, r)
	case len(parts) == 3 && parts[1] == "chunks":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "chunk index must be an integer")
			return
		}
		a.gated("fcs:write", func(w http.ResponseWriter, r *http.Request) {
			a.acceptChunk(w, r, taskID, index)
		})(w, r)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) acceptChunk(w http.ResponseWriter, r *http.Request, taskID string, index int) {
	principal, _ := auth.PrincipalFrom(r.Context())
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read chunk body")
		return
	}
	task, err := a.deps.Coordinator.AcceptChunk(r.Context(), taskID, principal.UserID, index, data)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrNotFound):
			writeError(w, http.StatusNotFound, "upload not found")
		case errors.Is(err, upload.ErrChunkIndex), errors.Is(err, upload.ErrChunkSize):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, upload.ErrNotAnFCSFile):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, upload.ErrTaskTerminal), errors.Is(err, upload.ErrTaskFinalized):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "could not store chunk")
		}
		return
	}
	writeJSON(w, http.StatusOK, viewTask(task))
}

func (a *API) uploadStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	principal, _ := auth.PrincipalFrom(r.Context())
	task, err := a.deps.Coordinator.Status(r.Context(), taskID, principal.UserID)
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) {
			writeError(w, http.StatusNotFound, "upload not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load upload")
		return
	}
	writeJSON(w, http.StatusOK, viewTask(task))
}
