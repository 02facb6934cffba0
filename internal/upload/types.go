package upload

import "time"

// Status is the lifecycle state of an upload task.
//
//	pending -> assembling -> finalizing -> completed
//	                                   \-> failed
//
// completed and failed are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssembling Status = "assembling"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task tracks one chunked upload. Chunks is a bitmap with one bit per chunk
// index, persisted so progress survives a restart.
type Task struct {
	ID          string
	UserID      string
	FileName    string
	FileSize    int64
	ChunkSize   int64
	Public      bool
	TotalChunks int
	Received    int
	Chunks      []byte
	Status      Status
	FileID      string // artifact short id, set when completed
	Error       string // failure detail, set when failed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasChunk reports whether chunk index has been received.
func (t *Task) HasChunk(index int) bool {
	byteIdx := index / 8
	if byteIdx >= len(t.Chunks) {
		return false
	}
	return t.Chunks[byteIdx]&(1<<uint(index%8)) != 0
}

// MarkChunk records chunk index as received.
func (t *Task) MarkChunk(index int) {
	byteIdx := index / 8
	for len(t.Chunks) <= byteIdx {
		t.Chunks = append(t.Chunks, 0)
	}
	t.Chunks[byteIdx] |= 1 << uint(index%8)
}

// Progress returns received chunks as a percentage.
func (t *Task) Progress() float64 {
	if t.TotalChunks == 0 {
		return 0
	}
	return float64(t.Received) / float64(t.TotalChunks) * 100
}

// Artifact is a fully ingested file: promoted bytes plus the metadata parsed
// out of them. ID is the base62 short id used in URLs and storage paths.
type Artifact struct {
	ID             string
	UserID         string
	Name           string
	Size           int64
	Location       string
	EventCount     int64
	ParameterCount int
	Public         bool
	CreatedAt      time.Time
}
