package videos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Resolving resolves a single video URL. *Resolver satisfies it.
type Resolving interface {
	Resolve(ctx context.Context, videoURL string) (Resolution, error)
}

// Report is delivered once per enqueued URL.
type Report struct {
	URL        string
	Resolution Resolution
	Err        error
}

// ImporterConfig controls the concurrency characteristics of the importer.
type ImporterConfig struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Importer resolves many URLs on a bounded worker pool. Report callbacks run
// on worker goroutines and must be safe for concurrent use.
type Importer struct {
	resolver Resolving
	report   func(Report)
	logger   *slog.Logger
	timeout  time.Duration

	jobs     chan string
	stopping chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once

	// mu guards closed and the registration of senders; it is never held
	// across a channel send.
	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

var errImporterClosed = errors.New("video importer closed")

// NewImporter starts cfg.Workers goroutines feeding on a queue of cfg.QueueSize.
func NewImporter(resolver Resolving, cfg ImporterConfig, report func(Report), logger *slog.Logger) *Importer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	if report == nil {
		report = func(Report) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	imp := &Importer{
		resolver: resolver,
		report:   report,
		logger:   logger,
		timeout:  cfg.JobTimeout,
		jobs:     make(chan string, cfg.QueueSize),
		stopping: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	imp.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go imp.worker()
	}

	return imp
}

// Enqueue schedules videoURL, blocking while the queue is full. A blocked
// Enqueue returns once Shutdown starts.
func (i *Importer) Enqueue(ctx context.Context, videoURL string) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return errImporterClosed
	}
	i.senders.Add(1)
	i.mu.Unlock()
	defer i.senders.Done()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.stopping:
		return errImporterClosed
	case i.jobs <- videoURL:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued URLs to drain. When ctx
// expires first, in-flight resolutions are cancelled.
func (i *Importer) Shutdown(ctx context.Context) error {
	i.once.Do(func() {
		i.mu.Lock()
		i.closed = true
		i.mu.Unlock()
		close(i.stopping)

		// jobs closes only after every sender has left Enqueue.
		go func() {
			i.senders.Wait()
			close(i.jobs)
		}()
	})

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		i.cancel()
		return ctx.Err()
	case <-done:
		i.cancel()
		return nil
	}
}

func (i *Importer) worker() {
	defer i.wg.Done()

	for videoURL := range i.jobs {
		i.handleJob(videoURL)
	}
}

func (i *Importer) handleJob(videoURL string) {
	if i.resolver == nil {
		i.logger.Error("video importer missing resolver", "url", videoURL)
		i.report(Report{URL: videoURL, Err: ErrCacheUnavailable})
		return
	}

	ctx, cancel := context.WithTimeout(i.ctx, i.timeout)
	defer cancel()

	res, err := i.resolver.Resolve(ctx, videoURL)
	if err != nil {
		i.logger.Error("video import failed", "url", videoURL, "error", err)
	}
	i.report(Report{URL: videoURL, Resolution: res, Err: err})
}
