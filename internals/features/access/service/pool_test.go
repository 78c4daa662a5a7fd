package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academia_backend/internals/features/access/service"
	m "academia_backend/internals/features/finance/billings/model"
)

func TestPoolDrainsOnShutdown(t *testing.T) {
	f := newFixture(t)
	f.dev.delay = 20 * time.Millisecond

	members := make([]m.Member, 5)
	for i := range members {
		members[i] = f.member(t, m.MembershipStatusActive, int64p(int64(i+1)))
	}

	pool := service.NewPool(f.rec, service.PoolOptions{Workers: 2, QueueSize: 10, JobTimeout: time.Second})
	pool.Start()
	for _, mem := range members {
		assert.True(t, pool.Enqueue(f.tenant, mem.MemberID))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	// every queued job ran: no subscription, so each enrolled member got a deny
	assert.Len(t, f.dev.Calls(), len(members))

	assert.False(t, pool.Enqueue(f.tenant, members[0].MemberID), "closed pool refuses work")
}

func TestPoolCoalescesQueuedDuplicates(t *testing.T) {
	f := newFixture(t)
	mem := f.member(t, m.MembershipStatusActive, int64p(1))

	// not started: jobs stay queued
	pool := service.NewPool(f.rec, service.PoolOptions{Workers: 1, QueueSize: 2, JobTimeout: time.Second})
	assert.True(t, pool.Enqueue(f.tenant, mem.MemberID))
	assert.True(t, pool.Enqueue(f.tenant, mem.MemberID))
	assert.True(t, pool.Enqueue(f.tenant, uuid.New()))
	assert.False(t, pool.Enqueue(f.tenant, uuid.New()), "queue full")

	pool.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	assert.Equal(t, []string{"deny:1"}, f.dev.Calls())
}

func TestPoolShutdownHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.dev.delay = 300 * time.Millisecond
	mem := f.member(t, m.MembershipStatusActive, int64p(1))

	pool := service.NewPool(f.rec, service.PoolOptions{Workers: 1, QueueSize: 1, JobTimeout: time.Second})
	pool.Start()
	require.True(t, pool.Enqueue(f.tenant, mem.MemberID))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	// let the in-flight job finish before the database closes
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestParseReconcilePayload(t *testing.T) {
	tenant, member := uuid.New(), uuid.New()

	gotT, gotM, err := service.ParseReconcilePayload(" " + tenant.String() + ":" + member.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, tenant, gotT)
	assert.Equal(t, member, gotM)

	for _, bad := range []string{"", tenant.String(), "x:" + member.String(), tenant.String() + ":y"} {
		_, _, err := service.ParseReconcilePayload(bad)
		assert.Error(t, err, bad)
	}
}
