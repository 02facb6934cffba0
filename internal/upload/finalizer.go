package upload

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kobukuro/fcsvault/internal/fcs"
	"github.com/kobukuro/fcsvault/internal/ids"
	"github.com/kobukuro/fcsvault/internal/obs"
	"github.com/kobukuro/fcsvault/internal/storage"
)

const shortIDAttempts = 5

// Finalizer turns fully assembled uploads into artifacts off the request
// path: parse the bytes, mint a collision-checked short id, promote the temp
// object, record the artifact. Every task ends completed or failed; a failed
// task keeps its temp object so the bytes can be inspected.
type Finalizer struct {
	tasks     TaskStore
	artifacts ArtifactStore
	backend   storage.Backend

	queue chan string
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewFinalizer starts workers goroutines draining the finalization queue.
func NewFinalizer(tasks TaskStore, artifacts ArtifactStore, backend storage.Backend, workers int) *Finalizer {
	if workers <= 0 {
		workers = 1
	}
	f := &Finalizer{
		tasks:     tasks,
		artifacts: artifacts,
		backend:   backend,
		queue:     make(chan string, 256),
	}
	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		go f.worker()
	}
	return f
}

// Enqueue hands a task id to the workers. The queue is buffered; if it is
// somehow full the send blocks, backpressuring the caller rather than losing
// the task.
func (f *Finalizer) Enqueue(taskID string) {
	f.queue <- taskID
}

// Close stops accepting tasks and waits for queued work to finish.
func (f *Finalizer) Close() {
	f.closeOnce.Do(func() { close(f.queue) })
	f.wg.Wait()
}

func (f *Finalizer) worker() {
	defer f.wg.Done()
	for taskID := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		f.finalize(ctx, taskID)
		cancel()
	}
}

func (f *Finalizer) finalize(ctx context.Context, taskID string) {
	t, err := f.tasks.Find(ctx, taskID)
	if err != nil {
		obs.LogError("finalize: task lookup failed", map[string]any{
			"task_id": taskID, "error": err.Error(),
		})
		return
	}
	if t.Status != StatusFinalizing {
		// Duplicate or stale enqueue; nothing to do.
		return
	}

	artifact, err := f.build(ctx, t)
	if err != nil {
		f.fail(ctx, t, err)
		return
	}

	t.Status = StatusCompleted
	t.FileID = artifact.ID
	t.UpdatedAt = time.Now().UTC()
	if err := f.tasks.Update(ctx, t); err != nil {
		obs.LogError("finalize: completion update failed", map[string]any{
			"task_id": t.ID, "error": err.Error(),
		})
		return
	}
	obs.ObserveFinalization("completed")
	obs.LogInfo("upload finalized", map[string]any{
		"task_id": t.ID, "file_id": artifact.ID, "size": artifact.Size,
	})
}

func (f *Finalizer) build(ctx context.Context, t *Task) (*Artifact, error) {
	rc, err := f.backend.ReadTemp(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("read assembled upload: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read assembled upload: %w", err)
	}

	meta, err := fcs.Parse(data)
	if err != nil {
		return nil, err
	}

	shortID, err := f.mintShortID(ctx)
	if err != nil {
		return nil, err
	}
	location, err := f.backend.Promote(ctx, t.ID, shortID)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}

	artifact := &Artifact{
		ID:             shortID,
		UserID:         t.UserID,
		Name:           t.FileName,
		Size:           t.FileSize,
		Location:       location,
		EventCount:     meta.EventCount,
		ParameterCount: meta.ParameterCount,
		Public:         t.Public,
		CreatedAt:      time.Now().UTC(),
	}
	if err := f.artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("record artifact: %w", err)
	}
	return artifact, nil
}

// mintShortID draws random short ids until one is unused. Collisions are
// vanishingly rare at 12 base62 characters, so a handful of attempts is
// plenty.
func (f *Finalizer) mintShortID(ctx context.Context) (string, error) {
	for i := 0; i < shortIDAttempts; i++ {
		id := ids.ShortID()
		taken, err := f.artifacts.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("upload: could not mint a unique file id in %d attempts", shortIDAttempts)
}

// fail marks the task failed. The temp object is kept on purpose.
func (f *Finalizer) fail(ctx context.Context, t *Task, cause error) {
	t.Status = StatusFailed
	t.Error = cause.Error()
	t.UpdatedAt = time.Now().UTC()
	if err := f.tasks.Update(ctx, t); err != nil {
		obs.LogError("finalize: failure update failed", map[string]any{
			"task_id": t.ID, "error": err.Error(),
		})
	}
	obs.ObserveFinalization("failed")
	obs.LogError("upload finalization failed", map[string]any{
		"task_id": t.ID, "error": cause.Error(),
	})
}
