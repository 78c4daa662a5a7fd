// file: internals/features/finance/billings/repository/gorm_repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	m "academia_backend/internals/features/finance/billings/model"
)

type gormRepository struct {
	db *gorm.DB
}

// New returns the gorm-backed ledger store.
func New(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
	return Classify("transaction", err)
}

/* =========================
   Policies & tenants
========================= */

func (r *gormRepository) GetPolicy(ctx context.Context, tenantID uuid.UUID) (*m.BillingPolicy, error) {
	var p m.BillingPolicy
	if err := r.conn(ctx).
		Where("billing_policy_tenant_id = ?", tenantID).
		Take(&p).Error; err != nil {
		return nil, Classify("get policy", err)
	}
	return &p, nil
}

func (r *gormRepository) UpsertPolicy(ctx context.Context, p *m.BillingPolicy) error {
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "billing_policy_tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"billing_policy_late_fee_percent",
			"billing_policy_monthly_interest_percent",
			"billing_policy_grace_days",
			"billing_policy_installments_enabled",
			"billing_policy_max_installments",
			"billing_policy_min_installment_amount",
			"billing_policy_default_due_day",
			"billing_policy_block_after_overdue_days",
			"billing_policy_timezone",
			"billing_policy_updated_at",
		}),
	}).Create(p).Error
	return Classify("upsert policy", err)
}

func (r *gormRepository) GetTenant(ctx context.Context, tenantID uuid.UUID) (*m.Tenant, error) {
	var t m.Tenant
	if err := r.conn(ctx).Where("tenant_id = ?", tenantID).Take(&t).Error; err != nil {
		return nil, Classify("get tenant", err)
	}
	return &t, nil
}

func (r *gormRepository) ListTenants(ctx context.Context, statuses ...m.TenantStatus) ([]m.Tenant, error) {
	q := r.conn(ctx).Model(&m.Tenant{})
	if len(statuses) > 0 {
		q = q.Where("tenant_status IN ?", statuses)
	}
	var out []m.Tenant
	if err := q.Order("tenant_created_at ASC").Find(&out).Error; err != nil {
		return nil, Classify("list tenants", err)
	}
	return out, nil
}

func (r *gormRepository) UpdateTenantStatus(ctx context.Context, tenantID uuid.UUID, from []m.TenantStatus, to m.TenantStatus, suspendedAt *time.Time) (bool, error) {
	res := r.conn(ctx).Model(&m.Tenant{}).
		Where("tenant_id = ? AND tenant_status IN ?", tenantID, from).
		Updates(map[string]any{
			"tenant_status":       to,
			"tenant_suspended_at": utcPtr(suspendedAt),
		})
	if res.Error != nil {
		return false, Classify("update tenant status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

/* =========================
   Members & subscriptions
========================= */

func (r *gormRepository) GetMember(ctx context.Context, tenantID, memberID uuid.UUID) (*m.Member, error) {
	var mem m.Member
	if err := r.conn(ctx).
		Where("member_tenant_id = ? AND member_id = ?", tenantID, memberID).
		Take(&mem).Error; err != nil {
		return nil, Classify("get member", err)
	}
	return &mem, nil
}

func (r *gormRepository) SetMemberDeviceUserID(ctx context.Context, tenantID, memberID uuid.UUID, deviceUserID int64, at time.Time) error {
	res := r.conn(ctx).Model(&m.Member{}).
		Where("member_tenant_id = ? AND member_id = ?", tenantID, memberID).
		Updates(map[string]any{
			"member_device_user_id":     deviceUserID,
			"member_device_enrolled_at": at.UTC(),
		})
	if res.Error != nil {
		return Classify("set member device user", res.Error)
	}
	if res.RowsAffected == 0 {
		return Classify("set member device user", ErrNotFound)
	}
	return nil
}

func (r *gormRepository) ListActiveSubscriptions(ctx context.Context, tenantID uuid.UUID, f SubscriptionFilter) ([]m.Subscription, error) {
	q := r.conn(ctx).Model(&m.Subscription{}).
		Preload("Plan").
		Where("subscription_tenant_id = ? AND subscription_status = ?", tenantID, m.SubscriptionStatusActive)
	if len(f.PayerIDs) > 0 {
		q = q.Where("subscription_payer_id IN ?", f.PayerIDs)
	}
	if f.PlanID != nil {
		q = q.Where("subscription_plan_id = ?", *f.PlanID)
	}
	var out []m.Subscription
	if err := q.Order("subscription_payer_id ASC, subscription_start_date ASC").Find(&out).Error; err != nil {
		return nil, Classify("list active subscriptions", err)
	}
	return out, nil
}

func (r *gormRepository) HasActiveSubscription(ctx context.Context, tenantID, payerID uuid.UUID, day time.Time) (bool, error) {
	day = m.DateOnly(day.UTC())
	var n int64
	err := r.conn(ctx).Model(&m.Subscription{}).
		Where("subscription_tenant_id = ? AND subscription_payer_id = ? AND subscription_status = ?",
			tenantID, payerID, m.SubscriptionStatusActive).
		Where("subscription_start_date <= ?", day).
		Where("subscription_end_date IS NULL OR subscription_end_date >= ?", day).
		Count(&n).Error
	if err != nil {
		return false, Classify("has active subscription", err)
	}
	return n > 0, nil
}

/* =========================
   Charges
========================= */

func (r *gormRepository) GetCharge(ctx context.Context, tenantID, chargeID uuid.UUID) (*m.Charge, error) {
	var c m.Charge
	if err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("charge_tenant_id = ? AND charge_id = ?", tenantID, chargeID).
		Take(&c).Error; err != nil {
		return nil, Classify("get charge", err)
	}
	return &c, nil
}

func (r *gormRepository) ListChargesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]m.Charge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []m.Charge
	if err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("charge_tenant_id = ? AND charge_id IN ?", tenantID, ids).
		Order("charge_due_date ASC").
		Find(&out).Error; err != nil {
		return nil, Classify("list charges", err)
	}
	return out, nil
}

func (r *gormRepository) ListChargesForSweep(ctx context.Context, tenantID uuid.UUID, dueBefore time.Time) ([]m.Charge, error) {
	var out []m.Charge
	if err := r.conn(ctx).
		Where("charge_tenant_id = ? AND charge_status IN ? AND charge_due_date < ?",
			tenantID, m.OpenChargeStatuses, dueBefore.UTC()).
		Order("charge_payer_id ASC, charge_due_date ASC").
		Find(&out).Error; err != nil {
		return nil, Classify("list charges for sweep", err)
	}
	return out, nil
}

func (r *gormRepository) ListChargesAwaitingGateway(ctx context.Context, now time.Time, limit int) ([]m.Charge, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []m.Charge
	if err := r.conn(ctx).
		Where("charge_status IN ? AND charge_gateway_reference IS NOT NULL AND charge_gateway_expires_at >= ?",
			m.OpenChargeStatuses, now.UTC()).
		Order("charge_gateway_expires_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, Classify("list charges awaiting gateway", err)
	}
	return out, nil
}

func (r *gormRepository) GetChargeByGatewayReference(ctx context.Context, reference string) (*m.Charge, error) {
	var c m.Charge
	if err := r.conn(ctx).
		Where("charge_gateway_reference = ?", reference).
		Take(&c).Error; err != nil {
		return nil, Classify("get charge by gateway reference", err)
	}
	return &c, nil
}

func (r *gormRepository) GetChargeByID(ctx context.Context, chargeID uuid.UUID) (*m.Charge, error) {
	var c m.Charge
	if err := r.conn(ctx).
		Where("charge_id = ?", chargeID).
		Take(&c).Error; err != nil {
		return nil, Classify("get charge by id", err)
	}
	return &c, nil
}

func (r *gormRepository) ExistsChargeForSubscriptionBetween(ctx context.Context, subscriptionID uuid.UUID, from, to time.Time) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&m.Charge{}).
		Where("charge_subscription_id = ? AND charge_due_date >= ? AND charge_due_date < ?",
			subscriptionID, from.UTC(), to.UTC()).
		Count(&n).Error
	if err != nil {
		return false, Classify("exists charge for subscription", err)
	}
	return n > 0, nil
}

func (r *gormRepository) CountOpenChargesDueBefore(ctx context.Context, tenantID, payerID uuid.UUID, dueBefore time.Time) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&m.Charge{}).
		Where("charge_tenant_id = ? AND charge_payer_id = ? AND charge_status IN ? AND charge_due_date < ?",
			tenantID, payerID, m.OpenChargeStatuses, dueBefore.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, Classify("count open charges", err)
	}
	return n, nil
}

func (r *gormRepository) CreateCharge(ctx context.Context, c *m.Charge) error {
	return Classify("create charge", r.conn(ctx).Create(c).Error)
}

func (r *gormRepository) CreateCharges(ctx context.Context, cs []m.Charge) error {
	if len(cs) == 0 {
		return nil
	}
	return Classify("create charges", r.conn(ctx).Create(&cs).Error)
}

func (r *gormRepository) ApplyChargeFees(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeFeeUpdate) (bool, error) {
	res := r.conn(ctx).Model(&m.Charge{}).
		Where("charge_tenant_id = ? AND charge_id = ? AND charge_status IN ?", tenantID, chargeID, m.OpenChargeStatuses).
		Updates(map[string]any{
			"charge_original_amount":      upd.OriginalAmount,
			"charge_late_fee_amount":      upd.LateFeeAmount,
			"charge_interest_amount":      upd.InterestAmount,
			"charge_amount":               upd.Amount,
			"charge_status":               upd.Status,
			"charge_last_recalculated_at": upd.RecalculatedAt.UTC(),
		})
	if res.Error != nil {
		return false, Classify("apply charge fees", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) SettleCharge(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeSettlementUpdate) (bool, error) {
	res := r.conn(ctx).Model(&m.Charge{}).
		Where("charge_tenant_id = ? AND charge_id = ? AND charge_status IN ?", tenantID, chargeID, m.OpenChargeStatuses).
		Updates(map[string]any{
			"charge_status":               m.ChargeStatusPaid,
			"charge_paid_at":              upd.PaidAt.UTC(),
			"charge_payment_method":       upd.Method,
			"charge_payment_ref":          upd.Reference,
			"charge_original_amount":      upd.OriginalAmount,
			"charge_late_fee_amount":      upd.LateFeeAmount,
			"charge_interest_amount":      upd.InterestAmount,
			"charge_amount":               upd.Amount,
			"charge_last_recalculated_at": upd.PaidAt.UTC(),
		})
	if res.Error != nil {
		return false, Classify("settle charge", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) CancelCharges(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, upd m.ChargeCancelUpdate) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Model(&m.Charge{}).
		Where("charge_tenant_id = ? AND charge_id IN ? AND charge_status IN ?", tenantID, ids, m.OpenChargeStatuses).
		Updates(map[string]any{
			"charge_status":        m.ChargeStatusCancelled,
			"charge_cancelled_at":  upd.CancelledAt.UTC(),
			"charge_cancel_reason": upd.Reason,
			"charge_superseded_by": upd.SupersededBy,
		})
	if res.Error != nil {
		return 0, Classify("cancel charges", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormRepository) SetChargeGateway(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeGatewayUpdate) (bool, error) {
	res := r.conn(ctx).Model(&m.Charge{}).
		Where("charge_tenant_id = ? AND charge_id = ? AND charge_status IN ?", tenantID, chargeID, m.OpenChargeStatuses).
		Updates(map[string]any{
			"charge_gateway_reference":  upd.Reference,
			"charge_gateway_qr_payload": upd.QRPayload,
			"charge_gateway_expires_at": upd.ExpiresAt.UTC(),
		})
	if res.Error != nil {
		return false, Classify("set charge gateway", res.Error)
	}
	return res.RowsAffected == 1, nil
}

/* =========================
   Billing cycles
========================= */

func (r *gormRepository) GetBillingCycle(ctx context.Context, cycleID uuid.UUID) (*m.BillingCycle, error) {
	var bc m.BillingCycle
	if err := r.conn(ctx).Where("billing_cycle_id = ?", cycleID).Take(&bc).Error; err != nil {
		return nil, Classify("get billing cycle", err)
	}
	return &bc, nil
}

func (r *gormRepository) ExistsBillingCycle(ctx context.Context, tenantID uuid.UUID, referenceMonth string) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&m.BillingCycle{}).
		Where("billing_cycle_tenant_id = ? AND billing_cycle_reference_month = ?", tenantID, referenceMonth).
		Count(&n).Error
	if err != nil {
		return false, Classify("exists billing cycle", err)
	}
	return n > 0, nil
}

func (r *gormRepository) CreateBillingCycle(ctx context.Context, bc *m.BillingCycle) error {
	return Classify("create billing cycle", r.conn(ctx).Create(bc).Error)
}

func (r *gormRepository) ListBillingCyclesForSweep(ctx context.Context, dueBefore time.Time) ([]m.BillingCycle, error) {
	var out []m.BillingCycle
	if err := r.conn(ctx).
		Where("billing_cycle_status = ? AND billing_cycle_due_date < ?", m.ChargeStatusPending, dueBefore.UTC()).
		Order("billing_cycle_due_date ASC").
		Find(&out).Error; err != nil {
		return nil, Classify("list billing cycles for sweep", err)
	}
	return out, nil
}

func (r *gormRepository) MarkBillingCycleOverdue(ctx context.Context, cycleID uuid.UUID) (bool, error) {
	res := r.conn(ctx).Model(&m.BillingCycle{}).
		Where("billing_cycle_id = ? AND billing_cycle_status = ?", cycleID, m.ChargeStatusPending).
		Update("billing_cycle_status", m.ChargeStatusOverdue)
	if res.Error != nil {
		return false, Classify("mark billing cycle overdue", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) SettleBillingCycle(ctx context.Context, cycleID uuid.UUID, upd m.BillingCycleSettlementUpdate) (bool, error) {
	res := r.conn(ctx).Model(&m.BillingCycle{}).
		Where("billing_cycle_id = ? AND billing_cycle_status IN ?", cycleID, m.OpenChargeStatuses).
		Updates(map[string]any{
			"billing_cycle_status":         m.ChargeStatusPaid,
			"billing_cycle_paid_at":        upd.PaidAt.UTC(),
			"billing_cycle_settlement_ref": upd.Reference,
		})
	if res.Error != nil {
		return false, Classify("settle billing cycle", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) CountOpenBillingCyclesDueBefore(ctx context.Context, tenantID uuid.UUID, dueBefore time.Time) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&m.BillingCycle{}).
		Where("billing_cycle_tenant_id = ? AND billing_cycle_status IN ? AND billing_cycle_due_date < ?",
			tenantID, m.OpenChargeStatuses, dueBefore.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, Classify("count open billing cycles", err)
	}
	return n, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
