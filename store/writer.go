package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/scout/product"
	"github.com/hazyhaar/scout/research"
)

// ProductWrite bundles a product with the sources that discovered it.
type ProductWrite struct {
	Product product.Product
	Sources []research.RawSource
}

// Writer persists products and run events off the request path. Writes
// are fire-and-forget: a full queue or a failing database slows nothing
// down and is only visible in the logs.
type Writer struct {
	store   *Store
	queue   chan writeJob
	logger  *slog.Logger
	timeout time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
}

type writeJob func(ctx context.Context, s *Store) error

// WriterConfig tunes the background writer.
type WriterConfig struct {
	// QueueSize bounds pending writes. Default: 256.
	QueueSize int
	// WriteTimeout bounds each individual write. Default: 5s.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

func (c *WriterConfig) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewWriter starts the background goroutine.
func NewWriter(s *Store, cfg WriterConfig) *Writer {
	cfg.defaults()
	w := &Writer{
		store:   s,
		queue:   make(chan writeJob, cfg.QueueSize),
		logger:  cfg.Logger,
		timeout: cfg.WriteTimeout,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()
	for job := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := job(ctx, w.store); err != nil {
			w.logger.Warn("store: background write failed", "error", err)
		}
		cancel()
	}
}

// enqueue drops the job when the queue is full rather than blocking the
// caller.
func (w *Writer) enqueue(job writeJob) {
	select {
	case w.queue <- job:
	default:
		w.logger.Warn("store: write queue full, dropping write")
	}
}

// PutProduct queues a product upsert.
func (w *Writer) PutProduct(p ProductWrite) {
	w.enqueue(func(ctx context.Context, s *Store) error {
		return s.Put(ctx, p.Product, p.Sources)
	})
}

// LogEvent queues a run event insert.
func (w *Writer) LogEvent(ev RunEvent) {
	w.enqueue(func(ctx context.Context, s *Store) error {
		return s.LogEvent(ctx, ev)
	})
}

// Close drains queued writes and stops the goroutine. Safe to call twice.
func (w *Writer) Close() {
	w.stopOnce.Do(func() { close(w.queue) })
	w.wg.Wait()
}
