package packaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
)

var (
	// ErrPackagerClosed is returned by Enqueue after Close.
	ErrPackagerClosed = errors.New("packager closed")
	// ErrQueueFull is returned by Enqueue while every queue slot is taken.
	ErrQueueFull = errors.New("packaging queue full")
)

// Packager repacks and uploads packages on a fixed pool of workers. Jobs
// run detached from the request that enqueued them; a failed job is
// logged and dropped.
type Packager struct {
	store       ports.PackageStore
	logger      *slog.Logger
	workers     int
	queueSize   int
	jobTimeout  time.Duration
	maxUnpacked int64

	jobs   chan dto.PackagingJobDTO
	group  *errgroup.Group
	mu     sync.RWMutex
	closed bool
}

// PackagerOption configures a Packager.
type PackagerOption func(*Packager)

// WithWorkers sets the number of concurrent upload workers.
func WithWorkers(n int) PackagerOption {
	return func(p *Packager) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets how many jobs may wait before Enqueue blocks.
func WithQueueSize(n int) PackagerOption {
	return func(p *Packager) {
		if n >= 0 {
			p.queueSize = n
		}
	}
}

// WithJobTimeout bounds a single repack and upload.
func WithJobTimeout(d time.Duration) PackagerOption {
	return func(p *Packager) { p.jobTimeout = d }
}

// WithMaxUnpackedBytes bounds the uncompressed archive size.
func WithMaxUnpackedBytes(n int64) PackagerOption {
	return func(p *Packager) { p.maxUnpacked = n }
}

// WithPackagerLogger sets the logger.
func WithPackagerLogger(l *slog.Logger) PackagerOption {
	return func(p *Packager) { p.logger = l }
}

// NewPackager starts the workers. Call Close to drain the queue.
func NewPackager(store ports.PackageStore, opts ...PackagerOption) *Packager {
	p := &Packager{
		store:       store,
		logger:      slog.Default(),
		workers:     2,
		queueSize:   64,
		jobTimeout:  5 * time.Minute,
		maxUnpacked: DefaultMaxUnpackedBytes,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.jobs = make(chan dto.PackagingJobDTO, p.queueSize)
	p.group = new(errgroup.Group)
	for range p.workers {
		p.group.Go(p.work)
	}
	return p
}

// Enqueue implements ports.PackagingQueue. A job without an ID is given one.
// Enqueue never waits for a worker; a full queue fails with ErrQueueFull.
func (p *Packager) Enqueue(job dto.PackagingJobDTO) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPackagerClosed
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	select {
	case p.jobs <- job:
	default:
		return ErrQueueFull
	}
	p.logger.Debug("packaging job queued", "job_id", job.ID, "kind", job.Kind, "version", job.Version)
	return nil
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (p *Packager) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	return p.group.Wait()
}

func (p *Packager) work() error {
	for job := range p.jobs {
		p.run(job)
	}
	return nil
}

func (p *Packager) run(job dto.PackagingJobDTO) {
	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	log := p.logger.With("job_id", job.ID, "kind", job.Kind, "version", job.Version)
	start := time.Now()

	data, err := Repack(job.Archive, job.Manifest, p.maxUnpacked)
	if err != nil {
		log.Error("failed to repack package", "error", err)
		return
	}
	if err := p.store.Store(ctx, data, job.Kind, job.Version); err != nil {
		log.Error("failed to upload package", "error", err)
		return
	}
	log.Info("package stored", "bytes", len(data), "duration", time.Since(start))
}
