package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic batch. Run must be safe to repeat: every batch in the
// billing engine is idempotent.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Options struct {
	Lock    Locker
	LockTTL time.Duration
	// RunOnStart fires every job once before the first tick.
	RunOnStart bool
	Logger     *zap.Logger
}

type Scheduler struct {
	jobs    []Job
	lock    Locker
	lockTTL time.Duration
	onStart bool
	log     *zap.Logger
}

func New(o Options, jobs ...Job) *Scheduler {
	if o.Lock == nil {
		o.Lock = LocalLock{}
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:    jobs,
		lock:    o.Lock,
		lockTTL: o.LockTTL,
		onStart: o.RunOnStart,
		log:     o.Logger.Named("scheduler"),
	}
}

// Run blocks until ctx is cancelled and every loop has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		if j.Interval <= 0 || j.Run == nil {
			s.log.Info("job disabled", zap.String("job", j.Name))
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	if s.onStart {
		s.RunOnce(ctx, j)
	}
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.RunOnce(ctx, j)
		}
	}
}

// RunOnce runs j under the lock. It reports whether the job actually ran.
func (s *Scheduler) RunOnce(ctx context.Context, j Job) bool {
	if ctx.Err() != nil {
		return false
	}
	release, ok, err := s.lock.TryAcquire(ctx, j.Name, s.lockTTL)
	if err != nil {
		s.log.Warn("lock failed", zap.String("job", j.Name), zap.Error(err))
		return false
	}
	if !ok {
		s.log.Debug("job held elsewhere", zap.String("job", j.Name))
		return false
	}
	defer release()

	start := time.Now()
	err = j.Run(ctx)
	fields := []zap.Field{zap.String("job", j.Name), zap.Duration("took", time.Since(start))}
	if err != nil {
		s.log.Error("job failed", append(fields, zap.Error(err))...)
		return true
	}
	s.log.Info("job done", fields...)
	return true
}
