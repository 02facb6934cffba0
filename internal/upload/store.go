package upload

import (
	"context"
	"time"
)

// TaskStore persists upload tasks.
type TaskStore interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	// ListUnfinished returns non-terminal tasks last touched before cutoff.
	ListUnfinished(ctx context.Context, cutoff time.Time) ([]*Task, error)
}

// ArtifactStore persists ingested files.
type ArtifactStore interface {
	Create(ctx context.Context, a *Artifact) error
	Find(ctx context.Context, id string) (*Artifact, error)
	ListByUser(ctx context.Context, userID string) ([]*Artifact, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}
