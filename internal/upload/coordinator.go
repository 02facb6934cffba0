package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kobukuro/fcsvault/internal/fcs"
	"github.com/kobukuro/fcsvault/internal/ids"
	"github.com/kobukuro/fcsvault/internal/storage"
)

// Coordinator runs the chunk ingestion path. All mutation of one task is
// serialized behind that task's lock, so duplicate and concurrent chunk
// deliveries are safe, and the handoff to the finalizer happens exactly once
// per task no matter how many clients race the final chunk.
type Coordinator struct {
	tasks    TaskStore
	backend  storage.Backend
	maxBytes int64
	enqueue  func(taskID string)
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	sync.Mutex
	handedOff bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorClock overrides the time source (useful for tests).
func WithCoordinatorClock(fn func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCoordinator wires the ingestion path. enqueue is called exactly once per
// task when its last chunk lands; it must not block for long.
func NewCoordinator(tasks TaskStore, backend storage.Backend, maxBytes int64, enqueue func(taskID string), opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		tasks:    tasks,
		backend:  backend,
		maxBytes: maxBytes,
		enqueue:  enqueue,
		now:      time.Now,
		locks:    make(map[string]*taskLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) lockFor(taskID string) *taskLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[taskID]
	if !ok {
		l = &taskLock{}
		c.locks[taskID] = l
	}
	return l
}

func (c *Coordinator) dropLock(taskID string) {
	c.mu.Lock()
	delete(c.locks, taskID)
	c.mu.Unlock()
}

// Initiate creates an upload task and preallocates its temp object.
// totalChunks is derived from the declared sizes: ceil(fileSize/chunkSize).
// public carries through to the finished artifact's visibility.
func (c *Coordinator) Initiate(ctx context.Context, userID, fileName string, fileSize, chunkSize int64, public bool) (*Task, error) {
	if userID == "" || fileName == "" {
		return nil, ErrInvalidInput
	}
	if fileSize <= 0 || chunkSize <= 0 {
		return nil, ErrInvalidInput
	}
	if fileSize > c.maxBytes {
		return nil, ErrTooLarge
	}

	total := int((fileSize + chunkSize - 1) / chunkSize)
	now := c.now().UTC()
	t := &Task{
		ID:          ids.New(),
		UserID:      userID,
		FileName:    fileName,
		FileSize:    fileSize,
		ChunkSize:   chunkSize,
		Public:      public,
		TotalChunks: total,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.backend.CreateTemp(ctx, t.ID, fileSize); err != nil {
		return nil, fmt.Errorf("upload: allocate temp: %w", err)
	}
	if err := c.tasks.Create(ctx, t); err != nil {
		// Task row failed; the temp object must not leak.
		_ = c.backend.DiscardTemp(ctx, t.ID)
		return nil, err
	}
	return t, nil
}

// AcceptChunk stores one chunk. Duplicate deliveries of an already stored
// chunk succeed without effect. When the final missing chunk lands the task
// moves to finalizing and is handed to the finalizer.
func (c *Coordinator) AcceptChunk(ctx context.Context, taskID, userID string, index int, data []byte) (*Task, error) {
	lock := c.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	t, err := c.tasks.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotFound
	}
	if t.Status.Terminal() {
		c.dropLock(taskID)
		return nil, ErrTaskTerminal
	}
	if t.Status == StatusFinalizing {
		c.dropLock(taskID)
		return nil, ErrTaskFinalized
	}
	if index < 0 || index >= t.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d", ErrChunkIndex, index, t.TotalChunks)
	}
	if int64(len(data)) != t.expectedChunkSize(index) {
		return nil, fmt.Errorf("%w: chunk %d is %d bytes, want %d",
			ErrChunkSize, index, len(data), t.expectedChunkSize(index))
	}
	if index == 0 {
		if err := fcs.ValidateHeader(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAnFCSFile, err)
		}
	}

	if t.HasChunk(index) {
		return t, nil
	}

	offset := int64(index) * t.ChunkSize
	if err := c.backend.WriteChunk(ctx, taskID, offset, data); err != nil {
		return nil, err
	}

	t.MarkChunk(index)
	t.Received++
	t.Status = StatusAssembling
	complete := t.Received == t.TotalChunks
	if complete {
		t.Status = StatusFinalizing
	}
	t.UpdatedAt = c.now().UTC()
	if err := c.tasks.Update(ctx, t); err != nil {
		return nil, err
	}

	if complete && !lock.handedOff {
		lock.handedOff = true
		c.enqueue(t.ID)
		// No further chunk can be accepted; the lock entry is done. Racers
		// already holding it will see the finalizing status in the store.
		c.dropLock(t.ID)
	}
	return t, nil
}

// Status returns the task for its owner.
func (c *Coordinator) Status(ctx context.Context, taskID, userID string) (*Task, error) {
	t, err := c.tasks.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotFound
	}
	if t.Status.Terminal() {
		// No more chunks can arrive; the lock entry is done.
		c.dropLock(taskID)
	}
	return t, nil
}

func (t *Task) expectedChunkSize(index int) int64 {
	if index == t.TotalChunks-1 {
		if last := t.FileSize - int64(t.TotalChunks-1)*t.ChunkSize; last > 0 {
			return last
		}
	}
	return t.ChunkSize
}
