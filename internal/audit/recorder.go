package audit

import (
	"context"
	"sync"
	"time"

	"github.com/kobukuro/fcsvault/internal/ids"
	"github.com/kobukuro/fcsvault/internal/obs"
)

const defaultQueueSize = 1024

// Recorder writes audit records off the request path. It owns a store backed
// by its own database pool, so a saturated or broken primary pool cannot stall
// auditing and a broken audit path cannot stall requests. Enqueue never
// blocks: when the queue is full the record is dropped and counted.
type Recorder struct {
	store Store
	ch    chan Record
	wg    sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	queueSize int
	writers   int
}

// WithQueueSize overrides the enqueue buffer length.
func WithQueueSize(n int) RecorderOption {
	return func(c *recorderConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithWriters sets how many background writer goroutines drain the queue.
func WithWriters(n int) RecorderOption {
	return func(c *recorderConfig) {
		if n > 0 {
			c.writers = n
		}
	}
}

// NewRecorder starts the background writers and returns the recorder. Callers
// must Close it to drain the queue on shutdown.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	cfg := recorderConfig{queueSize: defaultQueueSize, writers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Recorder{
		store: store,
		ch:    make(chan Record, cfg.queueSize),
		done:  make(chan struct{}),
	}
	for i := 0; i < cfg.writers; i++ {
		r.wg.Add(1)
		go r.writeLoop()
	}
	return r
}

// Record enqueues one audit record. It never blocks and never returns an
// error: audit failures must not affect the request being audited.
func (r *Recorder) Record(rec Record) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	select {
	case <-r.done:
	case r.ch <- rec:
	default:
		obs.ObserveAuditWriteFailure()
		obs.LogError("audit queue full, record dropped", map[string]any{
			"token_id": rec.TokenID,
			"path":     rec.Path,
		})
	}
}

// Close stops accepting records and drains what is already queued.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.ch:
			r.insert(rec)
		case <-r.done:
			// Drain whatever is already queued, then stop.
			for {
				select {
				case rec := <-r.ch:
					r.insert(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) insert(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Insert(ctx, &rec); err != nil {
		obs.ObserveAuditWriteFailure()
		obs.LogError("audit write failed", map[string]any{
			"record_id": rec.ID,
			"error":     err.Error(),
		})
	}
}

// List returns the most recent records for a token, newest first.
func (r *Recorder) List(ctx context.Context, tokenID string, limit int) ([]*Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.store.ListByToken(ctx, tokenID, limit)
}
