package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type job struct {
	tenantID uuid.UUID
	memberID uuid.UUID
}

type PoolOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Logger     *zap.Logger
}

// Pool runs reconciliations off the request path. A member already waiting in the
// queue is not queued twice.
type Pool struct {
	rec     *Reconciler
	jobs    chan job
	workers int
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[job]struct{}
	closed  bool
}

func NewPool(rec *Reconciler, o PoolOptions) *Pool {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 15 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Pool{
		rec:     rec,
		jobs:    make(chan job, o.QueueSize),
		workers: o.Workers,
		timeout: o.JobTimeout,
		log:     o.Logger.Named("access.pool"),
		pending: map[job]struct{}{},
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.mu.Lock()
		delete(p.pending, j)
		p.mu.Unlock()
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	// detached from whatever request enqueued it
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if _, err := p.rec.Reconcile(ctx, j.tenantID, j.memberID); err != nil {
		p.log.Warn("reconcile failed",
			zap.String("tenant_id", j.tenantID.String()),
			zap.String("member_id", j.memberID.String()),
			zap.Error(err))
	}
}

// Enqueue never blocks. It returns false when the pool is shut down or the queue is full.
func (p *Pool) Enqueue(tenantID, memberID uuid.UUID) bool {
	j := job{tenantID: tenantID, memberID: memberID}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, ok := p.pending[j]; ok {
		return true
	}
	select {
	case p.jobs <- j:
		p.pending[j] = struct{}{}
		return true
	default:
		p.log.Warn("reconcile queue full, dropping",
			zap.String("tenant_id", tenantID.String()),
			zap.String("member_id", memberID.String()))
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued and in-flight ones, or for ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
