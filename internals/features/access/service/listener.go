package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Enqueuer is satisfied by *Pool.
type Enqueuer interface {
	Enqueue(tenantID, memberID uuid.UUID) bool
}

// ParseReconcilePayload reads "<tenant_uuid>:<member_uuid>".
func ParseReconcilePayload(payload string) (tenantID, memberID uuid.UUID, err error) {
	t, mm, ok := strings.Cut(strings.TrimSpace(payload), ":")
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("reconcile payload %q: want tenant:member", payload)
	}
	if tenantID, err = uuid.Parse(t); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("reconcile payload tenant: %w", err)
	}
	if memberID, err = uuid.Parse(mm); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("reconcile payload member: %w", err)
	}
	return tenantID, memberID, nil
}

// Listener turns `NOTIFY <channel>, 'tenant:member'` from other services into reconcile jobs.
type Listener struct {
	dsn     string
	channel string
	target  Enqueuer
	log     *zap.Logger
}

func NewListener(dsn, channel string, target Enqueuer, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{dsn: dsn, channel: channel, target: target, log: log.Named("access.listener")}
}

// Run blocks until ctx is done. pq reconnects by itself; a nil notification marks a reconnect.
func (l *Listener) Run(ctx context.Context) error {
	report := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info("listening", zap.String("channel", l.channel))
		case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
			l.log.Warn("listener connection problem", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.log.Info("listener reconnected")
		}
	}
	pl := pq.NewListener(l.dsn, 5*time.Second, time.Minute, report)
	defer pl.Close()
	if err := pl.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-pl.Notify:
			if n == nil {
				continue
			}
			l.handle(n.Extra)
		case <-ping.C:
			go func() { _ = pl.Ping() }()
		}
	}
}

func (l *Listener) handle(payload string) bool {
	tenantID, memberID, err := ParseReconcilePayload(payload)
	if err != nil {
		l.log.Warn("bad reconcile notification", zap.Error(err))
		return false
	}
	return l.target.Enqueue(tenantID, memberID)
}
