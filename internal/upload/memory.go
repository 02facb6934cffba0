package upload

import (
	"context"
	"sort"
	"sync"
	"time"
)

var (
	_ TaskStore     = (*MemTaskStore)(nil)
	_ ArtifactStore = (*MemArtifactStore)(nil)
)

// MemTaskStore is an in-memory TaskStore used by tests and local development.
type MemTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewMemTaskStore() *MemTaskStore {
	return &MemTaskStore{tasks: make(map[string]*Task)}
}

func cloneTask(t *Task) *Task {
	cp := *t
	cp.Chunks = append([]byte(nil), t.Chunks...)
	return &cp
}

func (s *MemTaskStore) Create(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *MemTaskStore) Find(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *MemTaskStore) Update(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *MemTaskStore) ListUnfinished(_ context.Context, cutoff time.Time) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, t := range s.tasks {
		if !t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

// MemArtifactStore is an in-memory ArtifactStore used by tests and local
// development.
type MemArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

func NewMemArtifactStore() *MemArtifactStore {
	return &MemArtifactStore{artifacts: make(map[string]*Artifact)}
}

func (s *MemArtifactStore) Create(_ context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.artifacts[a.ID] = &cp
	return nil
}

func (s *MemArtifactStore) Find(_ context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemArtifactStore) ListByUser(_ context.Context, userID string) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Artifact
	for _, a := range s.artifacts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemArtifactStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artifacts[id]
	return ok, nil
}

func (s *MemArtifactStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[id]; !ok {
		return ErrNotFound
	}
	delete(s.artifacts, id)
	return nil
}
