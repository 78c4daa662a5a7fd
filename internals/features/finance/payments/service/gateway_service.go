package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	bm "academia_backend/internals/features/finance/billings/model"
	billingrepo "academia_backend/internals/features/finance/billings/repository"
	billingsvc "academia_backend/internals/features/finance/billings/service"
	model "academia_backend/internals/features/finance/payments/model"
	paymentrepo "academia_backend/internals/features/finance/payments/repository"
)

var (
	ErrInvalidSignature = fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
	ErrChargeNotOpen    = fiber.NewError(fiber.StatusConflict, "charge is not open")
	ErrNoGatewayCharge  = fiber.NewError(fiber.StatusConflict, "charge has no gateway charge")
)

// MidtransNotification is the HTTP notification body Midtrans posts.
type MidtransNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"` // capture, settlement, pending, deny, cancel, expire, refund, failure
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"` // accept / challenge / deny
	TransactionID     string `json:"transaction_id"`
	SettlementTime    string `json:"settlement_time"`
}

// NotificationResult is what the webhook answers with.
type NotificationResult struct {
	EventID  uuid.UUID                `json:"event_id"`
	ChargeID *uuid.UUID               `json:"charge_id,omitempty"`
	Status   model.GatewayEventStatus `json:"status"`
	Reason   string                   `json:"reason,omitempty"`
}

// PollResult summarizes one pass of the gateway poller.
type PollResult struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

type GatewayOptions struct {
	ServerKey string
	// Expiry is how long a QR stays payable.
	Expiry    time.Duration
	PollBatch int
	Logger    *zap.Logger
	Registry  prometheus.Registerer
	Clock     func() time.Time
}

// GatewayService issues gateway charges and turns gateway confirmations into settlements.
type GatewayService struct {
	repo      billingrepo.Repository
	billing   *billingsvc.Service
	gw        Gateway
	events    paymentrepo.EventRepository
	serverKey string
	expiry    time.Duration
	pollBatch int
	log       *zap.Logger
	now       func() time.Time

	notifications *prometheus.CounterVec
}

func NewGatewayService(repo billingrepo.Repository, billing *billingsvc.Service, gw Gateway, events paymentrepo.EventRepository, o GatewayOptions) *GatewayService {
	s := &GatewayService{
		repo:      repo,
		billing:   billing,
		gw:        gw,
		events:    events,
		serverKey: o.ServerKey,
		expiry:    o.Expiry,
		pollBatch: o.PollBatch,
		log:       o.Logger,
		now:       o.Clock,
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "gateway_notifications_total",
			Help:      "Gateway notifications, by outcome.",
		}, []string{"status"}),
	}
	if s.expiry <= 0 {
		s.expiry = 30 * time.Minute
	}
	if s.pollBatch <= 0 {
		s.pollBatch = 100
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("gateway")
	if s.now == nil {
		s.now = time.Now
	}
	if o.Registry != nil {
		o.Registry.MustRegister(s.notifications)
	}
	return s
}

func (s *GatewayService) clock() time.Time { return s.now().UTC() }

/* =========================================================
   Issue
========================================================= */

// CreateGatewayCharge asks the gateway for a QR covering the charge's current total.
// An unexpired QR already attached to the charge is returned as is.
func (s *GatewayService) CreateGatewayCharge(ctx context.Context, tenantID, chargeID uuid.UUID) (*bm.Charge, error) {
	now := s.clock()
	c, err := s.repo.GetCharge(ctx, tenantID, chargeID)
	if err != nil {
		return nil, err
	}
	if !c.ChargeStatus.IsOpen() {
		return nil, ErrChargeNotOpen
	}
	if c.ChargeGatewayReference != nil && c.ChargeGatewayExpiresAt != nil && c.ChargeGatewayExpiresAt.After(now) {
		return c, nil
	}

	fees, _, err := s.billing.PreviewFees(ctx, tenantID, chargeID, now)
	if err != nil {
		return nil, err
	}
	orderID := GatewayOrderID(chargeID, now)
	gc, err := s.gw.CreateCharge(ctx, ChargeRequest{
		OrderID:     orderID,
		Amount:      fees.Total,
		PayerID:     c.ChargePayerID,
		Description: c.ChargeDescription,
		Expiry:      s.expiry,
	})
	if err != nil {
		s.log.Warn("gateway charge failed",
			zap.String("charge_id", chargeID.String()),
			zap.Error(err))
		return nil, fiber.NewError(fiber.StatusBadGateway, "payment gateway unavailable")
	}

	ok, err := s.repo.SetChargeGateway(ctx, tenantID, chargeID, bm.ChargeGatewayUpdate{
		Reference: gc.Reference,
		QRPayload: gc.QRPayload,
		ExpiresAt: gc.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// settled or cancelled while we were talking to the gateway
		return nil, ErrChargeNotOpen
	}

	s.log.Info("gateway charge issued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_id", chargeID.String()),
		zap.String("reference", gc.Reference),
		zap.Int64("amount", fees.Total))
	return s.repo.GetCharge(ctx, tenantID, chargeID)
}

/* =========================================================
   Poll
========================================================= */

// PollGatewayCharge asks the gateway about one charge and settles it if the gateway says so.
func (s *GatewayService) PollGatewayCharge(ctx context.Context, tenantID, chargeID uuid.UUID) (*bm.Charge, GatewayStatus, error) {
	c, err := s.repo.GetCharge(ctx, tenantID, chargeID)
	if err != nil {
		return nil, GatewayStatus{}, err
	}
	if c.ChargeGatewayReference == nil {
		return nil, GatewayStatus{}, ErrNoGatewayCharge
	}
	st, err := s.gw.PollStatus(ctx, *c.ChargeGatewayReference)
	if err != nil {
		return nil, GatewayStatus{}, fiber.NewError(fiber.StatusBadGateway, "payment gateway unavailable")
	}
	if st.Settled && c.ChargeStatus.IsOpen() {
		if _, err := s.settle(ctx, c, st.SettledAt, st.Reference); err != nil && !errors.Is(err, billingsvc.ErrAlreadySettled) {
			return nil, st, err
		}
	}
	c, err = s.repo.GetCharge(ctx, tenantID, chargeID)
	return c, st, err
}

// PollPending checks every charge with a live QR. Used when notifications are lost.
func (s *GatewayService) PollPending(ctx context.Context) (PollResult, error) {
	charges, err := s.repo.ListChargesAwaitingGateway(ctx, s.clock(), s.pollBatch)
	if err != nil {
		return PollResult{}, err
	}

	var (
		mu  sync.Mutex
		res PollResult
	)
	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, c := range charges {
		if ctx.Err() != nil {
			break
		}
		c := c
		g.Go(func() error {
			settled, err := s.pollOne(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			res.Checked++
			switch {
			case err != nil:
				res.Failed++
				s.log.Warn("gateway poll failed",
					zap.String("charge_id", c.ChargeID.String()),
					zap.Error(err))
			case settled:
				res.Settled++
			}
			return nil
		})
	}
	_ = g.Wait()
	return res, ctx.Err()
}

func (s *GatewayService) pollOne(ctx context.Context, c bm.Charge) (bool, error) {
	st, err := s.gw.PollStatus(ctx, *c.ChargeGatewayReference)
	if err != nil {
		return false, err
	}
	if !st.Settled {
		return false, nil
	}
	_, err = s.settle(ctx, &c, st.SettledAt, st.Reference)
	if errors.Is(err, billingsvc.ErrAlreadySettled) {
		return false, nil
	}
	return err == nil, err
}

func (s *GatewayService) settle(ctx context.Context, c *bm.Charge, paidAt time.Time, providerRef string) (*bm.Charge, error) {
	ref := providerRef
	if ref == "" && c.ChargeGatewayReference != nil {
		ref = *c.ChargeGatewayReference
	}
	in := billingsvc.SettlementInput{Method: bm.PaymentMethodGateway, Reference: &ref}
	if !paidAt.IsZero() {
		in.PaidAt = &paidAt
	}
	return s.billing.MarkChargePaid(ctx, c.ChargeTenantID, c.ChargeID, in)
}

/* =========================================================
   Notifications
========================================================= */

// HandleMidtransNotification verifies, logs and applies one notification.
// Only storage outages are returned as errors, so the provider retries them;
// anything else is answered with a result so it stops retrying.
func (s *GatewayService) HandleMidtransNotification(ctx context.Context, n MidtransNotification, headers map[string]string) (NotificationResult, error) {
	if !VerifyMidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey, s.serverKey) {
		s.notifications.WithLabelValues("unauthorized").Inc()
		s.log.Warn("notification with invalid signature", zap.String("order_id", n.OrderID))
		return NotificationResult{}, ErrInvalidSignature
	}
	now := s.clock()

	charge, err := s.chargeForOrder(ctx, n.OrderID)
	if err != nil {
		return NotificationResult{}, err
	}

	ev := s.newEvent(n, headers, now)
	if charge != nil {
		ev.GatewayEventTenantID = &charge.ChargeTenantID
		ev.GatewayEventChargeID = &charge.ChargeID
	}
	if err := s.events.CreateEvent(ctx, ev); err != nil {
		return NotificationResult{}, err
	}
	res := NotificationResult{EventID: ev.GatewayEventID, ChargeID: ev.GatewayEventChargeID}

	finish := func(status model.GatewayEventStatus, reason string) (NotificationResult, error) {
		res.Status, res.Reason = status, reason
		errMsg := ""
		if status == model.GatewayEventStatusFailed {
			errMsg = reason
		}
		if err := s.events.MarkEvent(ctx, ev.GatewayEventID, status, errMsg, s.clock()); err != nil {
			s.log.Warn("mark gateway event failed", zap.String("event_id", ev.GatewayEventID.String()), zap.Error(err))
		}
		s.notifications.WithLabelValues(string(status)).Inc()
		return res, nil
	}

	if charge == nil {
		return finish(model.GatewayEventStatusIgnored, "charge not found")
	}
	settled, _ := MapMidtransStatus(n.TransactionStatus, n.FraudStatus)
	if !settled {
		return finish(model.GatewayEventStatusIgnored, "status "+n.TransactionStatus)
	}

	if gross, err := decimal.NewFromString(n.GrossAmount); err == nil && gross.IntPart() < charge.BaseAmount() {
		s.log.Warn("gateway amount below charge amount",
			zap.String("charge_id", charge.ChargeID.String()),
			zap.String("gross_amount", n.GrossAmount),
			zap.Int64("base_amount", charge.BaseAmount()))
	}

	paidAt := ParseMidtransTime(n.SettlementTime, ParseMidtransTime(n.TransactionTime, now))
	_, err = s.settle(ctx, charge, paidAt, n.TransactionID)
	switch {
	case err == nil:
		return finish(model.GatewayEventStatusProcessed, "")
	case errors.Is(err, billingsvc.ErrAlreadySettled):
		return finish(model.GatewayEventStatusDuplicated, "already settled")
	case errors.Is(err, billingrepo.ErrTransient):
		_, _ = finish(model.GatewayEventStatusFailed, err.Error())
		return res, err
	default:
		s.log.Error("gateway settlement rejected",
			zap.String("charge_id", charge.ChargeID.String()),
			zap.String("order_id", n.OrderID),
			zap.Error(err))
		return finish(model.GatewayEventStatusFailed, err.Error())
	}
}

// GatewayOrderID is "<charge_id>-<unix>": one per QR issued for the charge.
func GatewayOrderID(chargeID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s-%d", chargeID, at.Unix())
}

// ChargeIDFromOrderID reads the charge id back out of a GatewayOrderID.
func ChargeIDFromOrderID(orderID string) (uuid.UUID, bool) {
	i := strings.LastIndexByte(orderID, '-')
	if i <= 0 {
		return uuid.Nil, false
	}
	if _, err := strconv.ParseInt(orderID[i+1:], 10, 64); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(orderID[:i])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// chargeForOrder finds the charge a notification belongs to. The charge's current
// reference is tried first; a superseded QR that was still paid resolves through
// the charge id in its order id. (nil, nil) means no such charge.
func (s *GatewayService) chargeForOrder(ctx context.Context, orderID string) (*bm.Charge, error) {
	c, err := s.repo.GetChargeByGatewayReference(ctx, orderID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, billingrepo.ErrNotFound) {
		return nil, err
	}
	id, ok := ChargeIDFromOrderID(orderID)
	if !ok {
		return nil, nil
	}
	c, err = s.repo.GetChargeByID(ctx, id)
	if errors.Is(err, billingrepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("notification for superseded gateway reference",
		zap.String("charge_id", id.String()),
		zap.String("order_id", orderID))
	return c, nil
}

func (s *GatewayService) newEvent(n MidtransNotification, headers map[string]string, now time.Time) *model.PaymentGatewayEvent {
	headersJSON, _ := json.Marshal(headers)
	// signature lives in its own column only
	body := n
	body.SignatureKey = ""
	payloadJSON, _ := json.Marshal(body)
	return &model.PaymentGatewayEvent{
		GatewayEventProvider:    model.GatewayProviderMidtrans,
		GatewayEventType:        strPtrOrNil(n.TransactionStatus),
		GatewayEventExternalID:  strPtrOrNil(n.OrderID),
		GatewayEventExternalRef: strPtrOrNil(n.TransactionID),
		GatewayEventHeaders:     datatypes.JSON(headersJSON),
		GatewayEventPayload:     datatypes.JSON(payloadJSON),
		GatewayEventSignature:   strPtrOrNil(n.SignatureKey),
		GatewayEventStatus:      model.GatewayEventStatusReceived,
		GatewayEventReceivedAt:  now,
	}
}

/* =========================================================
   Event log (read side)
========================================================= */

func (s *GatewayService) ListEvents(ctx context.Context, f paymentrepo.EventFilter) ([]model.PaymentGatewayEvent, int64, error) {
	return s.events.ListEvents(ctx, f)
}

func (s *GatewayService) GetEvent(ctx context.Context, id uuid.UUID) (*model.PaymentGatewayEvent, error) {
	return s.events.GetEvent(ctx, id)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
