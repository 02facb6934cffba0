package upload

import "testing"

func TestChunkBitmap(t *testing.T) {
	var task Task
	task.TotalChunks = 30
	for _, idx := range []int{0, 7, 8, 29} {
		if task.HasChunk(idx) {
			t.Fatalf("chunk %d set before marking", idx)
		}
		task.MarkChunk(idx)
		if !task.HasChunk(idx) {
			t.Fatalf("chunk %d not set after marking", idx)
		}
	}
	if task.HasChunk(15) || task.HasChunk(100) {
		t.Fatal("unmarked chunks reported as set")
	}
}

func TestProgress(t *testing.T) {
	task := Task{TotalChunks: 4, Received: 1}
	if got := task.Progress(); got != 25 {
		t.Fatalf("progress = %v, want 25", got)
	}
	if got := (&Task{}).Progress(); got != 0 {
		t.Fatalf("empty task progress = %v, want 0", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:    false,
		StatusAssembling: false,
		StatusFinalizing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
	} {
		if status.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, !want, want)
		}
	}
}
