package upload

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kobukuro/fcsvault/internal/storage"
)

func newTestCoordinator(t *testing.T, maxBytes int64) (*Coordinator, *MemTaskStore, *storage.Local, *atomic.Int64) {
	t.Helper()
	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	tasks := NewMemTaskStore()
	var enqueued atomic.Int64
	c := NewCoordinator(tasks, backend, maxBytes, func(string) { enqueued.Add(1) })
	return c, tasks, backend, &enqueued
}

// fcsChunk returns chunk data for index; chunk 0 starts with the FCS marker.
func fcsChunk(index int, size int64) []byte {
	data := bytes.Repeat([]byte{0xAB}, int(size))
	if index == 0 {
		copy(data, "FCS3.1")
	}
	return data
}

func TestInitiateDerivesTotalChunks(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	cases := []struct {
		fileSize, chunkSize int64
		want                int
	}{
		{157286400, 5242880, 30},
		{10, 3, 4},
		{10, 10, 1},
		{10, 20, 1},
		{1, 1, 1},
	}
	for _, tc := range cases {
		task, err := c.Initiate(ctx, "u1", "a.fcs", tc.fileSize, tc.chunkSize, false)
		if err != nil {
			t.Fatalf("initiate(%d,%d): %v", tc.fileSize, tc.chunkSize, err)
		}
		if task.TotalChunks != tc.want {
			t.Errorf("initiate(%d,%d): total = %d, want %d",
				tc.fileSize, tc.chunkSize, task.TotalChunks, tc.want)
		}
		if task.Status != StatusPending {
			t.Errorf("status = %q, want pending", task.Status)
		}
	}
}

func TestInitiateRejectsBadInput(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 100)
	ctx := context.Background()

	if _, err := c.Initiate(ctx, "u1", "a.fcs", 0, 10, false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero size: err = %v", err)
	}
	if _, err := c.Initiate(ctx, "u1", "a.fcs", 10, 0, false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero chunk: err = %v", err)
	}
	if _, err := c.Initiate(ctx, "u1", "", 10, 5, false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty name: err = %v", err)
	}
	if _, err := c.Initiate(ctx, "u1", "a.fcs", 101, 10, false); !errors.Is(err, ErrTooLarge) {
		t.Errorf("over limit: err = %v", err)
	}
}

func TestAcceptChunkFullUpload(t *testing.T) {
	c, _, backend, enqueued := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	const chunkSize, total = 8, 4
	fileSize := int64(chunkSize*total - 3) // short last chunk

	task, err := c.Initiate(ctx, "u1", "a.fcs", fileSize, chunkSize, false)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Deliver out of order; last chunk is 5 bytes.
	for _, idx := range []int{2, 0, 3, 1} {
		size := int64(chunkSize)
		if idx == total-1 {
			size = fileSize - int64(total-1)*chunkSize
		}
		got, err := c.AcceptChunk(ctx, task.ID, "u1", idx, fcsChunk(idx, size))
		if err != nil {
			t.Fatalf("chunk %d: %v", idx, err)
		}
		if got.HasChunk(idx) != true {
			t.Fatalf("chunk %d not marked", idx)
		}
	}

	final, err := c.Status(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if final.Status != StatusFinalizing {
		t.Fatalf("status = %q, want finalizing", final.Status)
	}
	if final.Received != total {
		t.Fatalf("received = %d, want %d", final.Received, total)
	}
	if enqueued.Load() != 1 {
		t.Fatalf("enqueued %d times, want exactly 1", enqueued.Load())
	}

	rc, err := backend.ReadTemp(ctx, task.ID)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	defer rc.Close()
}

func TestAcceptChunkValidation(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	task, err := c.Initiate(ctx, "u1", "a.fcs", 20, 10, false)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := c.AcceptChunk(ctx, task.ID, "u2", 0, fcsChunk(0, 10)); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign user: err = %v, want ErrNotFound", err)
	}
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", 2, fcsChunk(2, 10)); !errors.Is(err, ErrChunkIndex) {
		t.Errorf("index past end: err = %v, want ErrChunkIndex", err)
	}
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", -1, fcsChunk(1, 10)); !errors.Is(err, ErrChunkIndex) {
		t.Errorf("negative index: err = %v, want ErrChunkIndex", err)
	}
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", 0, fcsChunk(0, 7)); !errors.Is(err, ErrChunkSize) {
		t.Errorf("short chunk: err = %v, want ErrChunkSize", err)
	}
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", 0, bytes.Repeat([]byte{1}, 10)); !errors.Is(err, ErrNotAnFCSFile) {
		t.Errorf("bad magic: err = %v, want ErrNotAnFCSFile", err)
	}
	if _, err := c.AcceptChunk(ctx, "missing", "u1", 0, fcsChunk(0, 10)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task: err = %v, want ErrNotFound", err)
	}
}

func TestLockEntryReleasedAfterHandoff(t *testing.T) {
	c, _, _, enqueued := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	task, err := c.Initiate(ctx, "u1", "a.fcs", 20, 10, false)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.AcceptChunk(ctx, task.ID, "u1", i, fcsChunk(i, 10)); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
	}

	c.mu.Lock()
	entries := len(c.locks)
	c.mu.Unlock()
	if entries != 0 {
		t.Fatalf("lock entries = %d after handoff, want 0", entries)
	}

	// A late duplicate neither re-enqueues nor leaves an entry behind.
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", 0, fcsChunk(0, 10)); !errors.Is(err, ErrTaskFinalized) {
		t.Fatalf("late chunk: err = %v, want ErrTaskFinalized", err)
	}
	if enqueued.Load() != 1 {
		t.Fatalf("enqueued %d times, want exactly 1", enqueued.Load())
	}
	c.mu.Lock()
	entries = len(c.locks)
	c.mu.Unlock()
	if entries != 0 {
		t.Fatalf("lock entries = %d after late chunk, want 0", entries)
	}
}

func TestAcceptChunkDuplicateIsIdempotent(t *testing.T) {
	c, _, _, enqueued := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	task, err := c.Initiate(ctx, "u1", "a.fcs", 20, 10, false)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := c.AcceptChunk(ctx, task.ID, "u1", 0, fcsChunk(0, 10))
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if got.Received != 1 {
			t.Fatalf("delivery %d: received = %d, want 1", i, got.Received)
		}
	}
	if enqueued.Load() != 0 {
		t.Fatal("incomplete upload must not be enqueued")
	}
}

func TestAcceptChunkAfterFinalizingRejected(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	task, err := c.Initiate(ctx, "u1", "a.fcs", 10, 10, false)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", 0, fcsChunk(0, 10)); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if _, err := c.AcceptChunk(ctx, task.ID, "u1", 0, fcsChunk(0, 10)); !errors.Is(err, ErrTaskFinalized) {
		t.Fatalf("err = %v, want ErrTaskFinalized", err)
	}
}

func TestConcurrentFinalChunkEnqueuesOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		c, _, _, enqueued := newTestCoordinator(t, 1<<30)
		ctx := context.Background()

		task, err := c.Initiate(ctx, "u1", "a.fcs", 30, 10, false)
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if _, err := c.AcceptChunk(ctx, task.ID, "u1", 0, fcsChunk(0, 10)); err != nil {
			t.Fatalf("chunk 0: %v", err)
		}
		if _, err := c.AcceptChunk(ctx, task.ID, "u1", 1, fcsChunk(1, 10)); err != nil {
			t.Fatalf("chunk 1: %v", err)
		}

		// Race many deliveries of the final chunk.
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = c.AcceptChunk(ctx, task.ID, "u1", 2, fcsChunk(2, 10))
			}()
		}
		wg.Wait()

		if got := enqueued.Load(); got != 1 {
			t.Fatalf("round %d: enqueued %d times, want exactly 1", round, got)
		}
	}
}

func TestConcurrentDistinctChunks(t *testing.T) {
	c, _, _, enqueued := newTestCoordinator(t, 1<<30)
	ctx := context.Background()

	const total = 30
	task, err := c.Initiate(ctx, "u1", "a.fcs", total*10, 10, false)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := c.AcceptChunk(ctx, task.ID, "u1", idx, fcsChunk(idx, 10)); err != nil {
				t.Errorf("chunk %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	final, err := c.Status(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if final.Received != total || final.Status != StatusFinalizing {
		t.Fatalf("received=%d status=%q", final.Received, final.Status)
	}
	if enqueued.Load() != 1 {
		t.Fatalf("enqueued %d times, want exactly 1", enqueued.Load())
	}
}
