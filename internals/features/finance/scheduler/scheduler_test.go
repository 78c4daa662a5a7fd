package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingsvc "academia_backend/internals/features/finance/billings/service"
	paymentsvc "academia_backend/internals/features/finance/payments/service"
	"academia_backend/internals/features/finance/scheduler"
)

func newRedisLock(t *testing.T) (*scheduler.RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return scheduler.NewRedisLock(rdb, "test:"), mr
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	lock, mr := newRedisLock(t)
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:sweep"))

	_, ok, err = lock.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys are independent
	r2, ok, err := lock.TryAcquire(ctx, "generate", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	r2()

	release()
	assert.False(t, mr.Exists("test:sweep"))
	_, ok, err = lock.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiresAndStaleReleaseIsHarmless(t *testing.T) {
	lock, mr := newRedisLock(t)
	ctx := context.Background()

	stale, ok, err := lock.TryAcquire(ctx, "sweep", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = lock.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken")

	// the first holder's release must not drop the new holder's key
	stale()
	assert.True(t, mr.Exists("test:sweep"))
}

func TestRedisLockReportsConnectionErrors(t *testing.T) {
	lock, mr := newRedisLock(t)
	mr.Close()

	_, ok, err := lock.TryAcquire(context.Background(), "sweep", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	lock, _ := newRedisLock(t)
	ctx := context.Background()

	var runs atomic.Int32
	job := scheduler.Job{Name: "sweep", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	s := scheduler.New(scheduler.Options{Lock: lock, LockTTL: time.Minute})

	release, ok, err := lock.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, s.RunOnce(ctx, job))
	assert.Equal(t, int32(0), runs.Load())

	release()
	assert.True(t, s.RunOnce(ctx, job))
	assert.True(t, s.RunOnce(ctx, job), "lock is released after each run")
	assert.Equal(t, int32(2), runs.Load())
}

func TestRunOnceReleasesLockOnFailure(t *testing.T) {
	lock, mr := newRedisLock(t)
	s := scheduler.New(scheduler.Options{Lock: lock})
	job := scheduler.Job{Name: "generate", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("db down")
	}}

	assert.True(t, s.RunOnce(context.Background(), job))
	assert.False(t, mr.Exists("test:generate"))
}

func TestRunTicksUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	s := scheduler.New(scheduler.Options{RunOnStart: true},
		scheduler.Job{Name: "tick", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
		scheduler.Job{Name: "off", Interval: 0, Run: func(context.Context) error {
			t.Error("disabled job ran")
			return nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeBilling struct {
	mu     sync.Mutex
	calls  []string
	sweepE error
}

func (f *fakeBilling) add(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeBilling) SweepAll(context.Context) (billingsvc.SweepResult, error) {
	f.add("sweep")
	return billingsvc.SweepResult{Processed: 3, Updated: 2}, f.sweepE
}

func (f *fakeBilling) SweepBillingCycles(context.Context) (billingsvc.BillingCycleSweepResult, error) {
	f.add("sweep-cycles")
	return billingsvc.BillingCycleSweepResult{}, nil
}

func (f *fakeBilling) GenerateAll(_ context.Context, month string) (billingsvc.GenerateResult, error) {
	f.add("generate:" + month)
	return billingsvc.GenerateResult{ReferenceMonth: month}, nil
}

func (f *fakeBilling) GenerateBillingCycles(_ context.Context, month string) (billingsvc.BillingCycleResult, error) {
	f.add("generate-cycles:" + month)
	return billingsvc.BillingCycleResult{ReferenceMonth: month}, nil
}

type fakePoller struct{ n atomic.Int32 }

func (p *fakePoller) PollPending(context.Context) (paymentsvc.PollResult, error) {
	p.n.Add(1)
	return paymentsvc.PollResult{Checked: 1, Settled: 1}, nil
}

func jobByName(t *testing.T, jobs []scheduler.Job, name string) scheduler.Job {
	t.Helper()
	for _, j := range jobs {
		if j.Name == name {
			return j
		}
	}
	t.Fatalf("job %s missing", name)
	return scheduler.Job{}
}

func TestBillingJobs(t *testing.T) {
	b := &fakeBilling{}
	p := &fakePoller{}
	clock := func() time.Time { return time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC) }
	iv := scheduler.Intervals{Sweep: time.Hour, Generate: time.Hour, GatewayPoll: time.Minute}
	jobs := scheduler.BillingJobs(b, p, iv, clock, nil)
	require.Len(t, jobs, 3)

	ctx := context.Background()
	require.NoError(t, jobByName(t, jobs, scheduler.JobGenerate).Run(ctx))
	require.NoError(t, jobByName(t, jobs, scheduler.JobSweep).Run(ctx))
	require.NoError(t, jobByName(t, jobs, scheduler.JobGatewayPoll).Run(ctx))

	assert.Equal(t, []string{
		"generate:2025-03", "generate-cycles:2025-03",
		"sweep", "sweep-cycles",
	}, b.calls)
	assert.Equal(t, int32(1), p.n.Load())

	// a failed member sweep stops before platform cycles
	b.calls = nil
	b.sweepE = errors.New("boom")
	assert.Error(t, jobByName(t, jobs, scheduler.JobSweep).Run(ctx))
	assert.Equal(t, []string{"sweep"}, b.calls)

	assert.Len(t, scheduler.BillingJobs(b, nil, iv, clock, nil), 2, "no gateway, no poll job")
}
