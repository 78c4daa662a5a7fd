package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	billingrepo "academia_backend/internals/features/finance/billings/repository"
	model "academia_backend/internals/features/finance/payments/model"
)

// EventFilter narrows the gateway event listing.
type EventFilter struct {
	Provider string
	Status   string
	ChargeID *uuid.UUID
	TenantID *uuid.UUID
	Query    string
	Start    *time.Time
	End      *time.Time
	OrderBy  string // whitelisted "<column> ASC|DESC"
	Limit    int
	Offset   int
}

type EventRepository interface {
	CreateEvent(ctx context.Context, ev *model.PaymentGatewayEvent) error
	MarkEvent(ctx context.Context, id uuid.UUID, status model.GatewayEventStatus, errMsg string, at time.Time) error
	GetEvent(ctx context.Context, id uuid.UUID) (*model.PaymentGatewayEvent, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.PaymentGatewayEvent, int64, error)
}

type gormEventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &gormEventRepository{db: db}
}

func (r *gormEventRepository) CreateEvent(ctx context.Context, ev *model.PaymentGatewayEvent) error {
	return billingrepo.Classify("create gateway event", r.db.WithContext(ctx).Create(ev).Error)
}

func (r *gormEventRepository) MarkEvent(ctx context.Context, id uuid.UUID, status model.GatewayEventStatus, errMsg string, at time.Time) error {
	var errCol *string
	if errMsg != "" {
		errCol = &errMsg
	}
	err := r.db.WithContext(ctx).Model(&model.PaymentGatewayEvent{}).
		Where("gateway_event_id = ?", id).
		Updates(map[string]any{
			"gateway_event_status":       status,
			"gateway_event_error":        errCol,
			"gateway_event_processed_at": at.UTC(),
			"gateway_event_try_count":    gorm.Expr("gateway_event_try_count + 1"),
		}).Error
	return billingrepo.Classify("mark gateway event", err)
}

func (r *gormEventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*model.PaymentGatewayEvent, error) {
	var ev model.PaymentGatewayEvent
	if err := r.db.WithContext(ctx).Where("gateway_event_id = ?", id).Take(&ev).Error; err != nil {
		return nil, billingrepo.Classify("get gateway event", err)
	}
	return &ev, nil
}

func (r *gormEventRepository) ListEvents(ctx context.Context, f EventFilter) ([]model.PaymentGatewayEvent, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.PaymentGatewayEvent{})
	if f.Provider != "" {
		q = q.Where("gateway_event_provider = ?", strings.ToLower(f.Provider))
	}
	if f.Status != "" {
		q = q.Where("gateway_event_status = ?", strings.ToLower(f.Status))
	}
	if f.ChargeID != nil {
		q = q.Where("gateway_event_charge_id = ?", *f.ChargeID)
	}
	if f.TenantID != nil {
		q = q.Where("gateway_event_tenant_id = ?", *f.TenantID)
	}
	// search on external_id / external_ref
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(COALESCE(gateway_event_external_id,'')) LIKE ? OR LOWER(COALESCE(gateway_event_external_ref,'')) LIKE ?", like, like)
	}
	if f.Start != nil {
		q = q.Where("gateway_event_received_at >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("gateway_event_received_at < ?", f.End.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, billingrepo.Classify("count gateway events", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	order := f.OrderBy
	if order == "" {
		order = "gateway_event_received_at DESC"
	}
	var rows []model.PaymentGatewayEvent
	if err := q.Order(order).
		Limit(limit).Offset(f.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, billingrepo.Classify("list gateway events", err)
	}
	return rows, total, nil
}
