package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"academia_backend/internals/features/access/device"
	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
)

type Decision string

const (
	DecisionGrant Decision = "grant"
	DecisionDeny  Decision = "deny"
)

// Action is what was actually sent to the controller.
type Action string

const (
	ActionGranted         Action = "granted"
	ActionEnrolledGranted Action = "enrolled_granted"
	ActionDenied          Action = "denied"
	ActionSkipped         Action = "skipped" // deny for a member with no credential
	ActionFailed          Action = "failed"
)

// Outcome reports one reconciliation. DeviceError is set when the controller call failed;
// the failure is not returned as an error.
type Outcome struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	MemberID     uuid.UUID `json:"member_id"`
	Decision     Decision  `json:"decision"`
	Reason       string    `json:"reason"`
	Action       Action    `json:"action"`
	DeviceUserID *int64    `json:"device_user_id,omitempty"`
	DeviceError  string    `json:"device_error,omitempty"`
}

// PolicySource resolves the tenant's billing policy (stored or default).
type PolicySource interface {
	GetPolicy(ctx context.Context, tenantID uuid.UUID) (m.BillingPolicy, bool, error)
}

type Options struct {
	GroupID  int64
	Logger   *zap.Logger
	Registry prometheus.Registerer
	Clock    func() time.Time
}

// Reconciler pushes the ledger's view of a member onto the access controller.
type Reconciler struct {
	repo     repository.Repository
	policies PolicySource
	dev      device.Device
	groupID  int64
	log      *zap.Logger
	now      func() time.Time

	decisions      *prometheus.CounterVec
	deviceFailures *prometheus.CounterVec
}

func NewReconciler(repo repository.Repository, policies PolicySource, dev device.Device, o Options) *Reconciler {
	r := &Reconciler{
		repo:     repo,
		policies: policies,
		dev:      dev,
		groupID:  o.GroupID,
		log:      o.Logger,
		now:      o.Clock,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "access",
			Name:      "reconcile_decisions_total",
			Help:      "Reconciliations, by decision and action.",
		}, []string{"decision", "action"}),
		deviceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "access",
			Name:      "device_failures_total",
			Help:      "Failed access controller calls, by operation.",
		}, []string{"op"}),
	}
	if r.dev == nil {
		r.dev = device.Nop{}
	}
	if r.groupID <= 0 {
		r.groupID = 1
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.Named("access")
	if r.now == nil {
		r.now = time.Now
	}
	if o.Registry != nil {
		o.Registry.MustRegister(r.decisions, r.deviceFailures)
	}
	return r
}

// Decide computes the desired permission from the ledger alone.
// Grant iff the member is active, has a subscription covering today and, when the
// policy blocks on debt, no open charge is overdue for longer than the policy allows.
func (r *Reconciler) Decide(ctx context.Context, tenantID uuid.UUID, mem *m.Member) (Decision, string, error) {
	if mem.MemberStatus != m.MembershipStatusActive {
		return DecisionDeny, "member " + string(mem.MemberStatus), nil
	}

	policy, _, err := r.policies.GetPolicy(ctx, tenantID)
	if err != nil {
		return "", "", err
	}

	today := policy.LocalDate(r.now())
	active, err := r.repo.HasActiveSubscription(ctx, tenantID, mem.MemberID, today)
	if err != nil {
		return "", "", err
	}
	if !active {
		return DecisionDeny, "no active subscription", nil
	}
	if days := policy.BillingPolicyBlockAfterOverdueDays; days > 0 {
		n, err := r.repo.CountOpenChargesDueBefore(ctx, tenantID, mem.MemberID, today.AddDate(0, 0, -days))
		if err != nil {
			return "", "", err
		}
		if n > 0 {
			return DecisionDeny, "overdue charges", nil
		}
	}
	return DecisionGrant, "active subscription", nil
}

// Reconcile decides and sends exactly one grant or deny. A grant for a member without
// a credential enrolls them first. Controller failures are logged and counted only.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID, memberID uuid.UUID) (Outcome, error) {
	out := Outcome{TenantID: tenantID, MemberID: memberID}

	mem, err := r.repo.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return out, err
	}
	out.DeviceUserID = mem.MemberDeviceUserID

	out.Decision, out.Reason, err = r.Decide(ctx, tenantID, mem)
	if err != nil {
		return out, err
	}

	switch out.Decision {
	case DecisionDeny:
		if mem.MemberDeviceUserID == nil {
			out.Action = ActionSkipped
			break
		}
		if err := r.dev.DenyAccess(ctx, *mem.MemberDeviceUserID); err != nil {
			r.deviceFailed(&out, "deny", err)
			break
		}
		out.Action = ActionDenied

	case DecisionGrant:
		action := ActionGranted
		if mem.MemberDeviceUserID == nil {
			code := mem.MemberExternalCode
			if code == "" {
				code = mem.MemberID.String()
			}
			id, err := r.dev.Enroll(ctx, mem.MemberName, code)
			if err != nil {
				r.deviceFailed(&out, "enroll", err)
				break
			}
			if err := r.repo.SetMemberDeviceUserID(ctx, tenantID, memberID, id, r.now()); err != nil {
				// the controller user exists but we lost its id
				r.log.Error("persist device user id failed",
					zap.String("tenant_id", tenantID.String()),
					zap.String("member_id", memberID.String()),
					zap.Int64("device_user_id", id),
					zap.Error(err))
				return out, err
			}
			out.DeviceUserID = &id
			action = ActionEnrolledGranted
		}
		if err := r.dev.GrantAccess(ctx, *out.DeviceUserID, r.groupID); err != nil {
			r.deviceFailed(&out, "grant", err)
			break
		}
		out.Action = action
	}

	r.decisions.WithLabelValues(string(out.Decision), string(out.Action)).Inc()
	r.log.Info("access reconciled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("member_id", memberID.String()),
		zap.String("decision", string(out.Decision)),
		zap.String("reason", out.Reason),
		zap.String("action", string(out.Action)))
	return out, nil
}

func (r *Reconciler) deviceFailed(out *Outcome, op string, err error) {
	out.Action = ActionFailed
	out.DeviceError = err.Error()
	if errors.Is(err, device.ErrNoDevice) {
		return
	}
	r.deviceFailures.WithLabelValues(op).Inc()
	r.log.Warn("access device call failed",
		zap.String("tenant_id", out.TenantID.String()),
		zap.String("member_id", out.MemberID.String()),
		zap.String("op", op),
		zap.Error(err))
}
