package upload

import (
	"context"
	"time"

	"github.com/kobukuro/fcsvault/internal/obs"
	"github.com/kobukuro/fcsvault/internal/storage"
)

// Sweeper expires abandoned uploads. Tasks stuck before completion for longer
// than ttl are failed and their temp objects discarded; tasks stuck in
// finalizing are re-enqueued instead, covering a finalizer that died between
// the handoff and the terminal update.
type Sweeper struct {
	tasks    TaskStore
	backend  storage.Backend
	fin      *Finalizer
	ttl      time.Duration
	interval time.Duration
}

func NewSweeper(tasks TaskStore, backend storage.Backend, fin *Finalizer, ttl time.Duration) *Sweeper {
	interval := ttl / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{tasks: tasks, backend: backend, fin: fin, ttl: ttl, interval: interval}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	stale, err := s.tasks.ListUnfinished(ctx, cutoff)
	if err != nil {
		obs.LogError("sweep: list failed", map[string]any{"error": err.Error()})
		return
	}
	for _, t := range stale {
		if t.Status == StatusFinalizing {
			s.fin.Enqueue(t.ID)
			continue
		}
		t.Status = StatusFailed
		t.Error = "upload expired"
		t.UpdatedAt = time.Now().UTC()
		if err := s.tasks.Update(ctx, t); err != nil {
			obs.LogError("sweep: expire failed", map[string]any{
				"task_id": t.ID, "error": err.Error(),
			})
			continue
		}
		if err := s.backend.DiscardTemp(ctx, t.ID); err != nil && err != storage.ErrNotFound {
			obs.LogError("sweep: discard temp failed", map[string]any{
				"task_id": t.ID, "error": err.Error(),
			})
		}
		obs.LogInfo("upload expired", map[string]any{"task_id": t.ID})
	}
}
