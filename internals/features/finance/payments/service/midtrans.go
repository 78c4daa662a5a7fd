package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

/* =========================================================
   Midtrans Core API (QRIS)
========================================================= */

// Midtrans reports local times in WIB.
var midtransZone = time.FixedZone("WIB", 7*60*60)

const (
	midtransTimeLayout      = "2006-01-02 15:04:05"
	midtransOrderTimeLayout = "2006-01-02 15:04:05 -0700"
)

type MidtransGateway struct {
	client coreapi.Client
	now    func() time.Time
}

// NewMidtransGateway builds a Core API client. production=false targets the sandbox.
func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	g := &MidtransGateway{now: time.Now}
	if production {
		g.client.New(serverKey, midtrans.Production)
	} else {
		g.client.New(serverKey, midtrans.Sandbox)
	}
	return g
}

func (g *MidtransGateway) CreateCharge(ctx context.Context, req ChargeRequest) (GatewayCharge, error) {
	if req.Amount <= 0 {
		return GatewayCharge{}, fmt.Errorf("midtrans charge %s: amount must be positive", req.OrderID)
	}
	orderTime := g.now()
	charge := BuildQrisChargeReq(req, orderTime)

	resp, err := withContext(ctx, func() (*coreapi.ChargeResponse, error) {
		r, merr := g.client.ChargeTransaction(charge)
		if merr != nil {
			return nil, merr
		}
		return r, nil
	})
	if err != nil {
		return GatewayCharge{}, fmt.Errorf("midtrans charge %s: %w", req.OrderID, err)
	}

	qr := resp.QRString
	if qr == "" {
		// some acquirers only return the QR image URL
		for _, a := range resp.Actions {
			if a.Name == "generate-qr-code" {
				qr = a.URL
				break
			}
		}
	}
	return GatewayCharge{
		Reference: req.OrderID,
		QRPayload: qr,
		ExpiresAt: orderTime.UTC().Add(req.Expiry),
	}, nil
}

// BuildQrisChargeReq asks Midtrans to close the QR when it expires locally,
// rounded up to whole minutes.
func BuildQrisChargeReq(req ChargeRequest, orderTime time.Time) *coreapi.ChargeReq {
	charge := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeQris,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.OrderID,
			Name:  truncate(defaultString(req.Description, "Membership"), 50),
			Price: req.Amount,
			Qty:   1,
		}},
	}
	if req.Expiry > 0 {
		minutes := int((req.Expiry + time.Minute - 1) / time.Minute)
		charge.CustomExpiry = &coreapi.CustomExpiry{
			OrderTime:      orderTime.In(midtransZone).Format(midtransOrderTimeLayout),
			ExpiryDuration: minutes,
			Unit:           "minute",
		}
	}
	return charge
}

func (g *MidtransGateway) PollStatus(ctx context.Context, reference string) (GatewayStatus, error) {
	resp, err := withContext(ctx, func() (*coreapi.TransactionStatusResponse, error) {
		r, merr := g.client.CheckTransaction(reference)
		if merr != nil {
			return nil, merr
		}
		return r, nil
	})
	if err != nil {
		return GatewayStatus{}, fmt.Errorf("midtrans status %s: %w", reference, err)
	}

	settled, final := MapMidtransStatus(resp.TransactionStatus, resp.FraudStatus)
	st := GatewayStatus{
		Settled:   settled,
		Final:     final,
		Status:    resp.TransactionStatus,
		Reference: resp.TransactionID,
	}
	if settled {
		st.SettledAt = ParseMidtransTime(resp.SettlementTime, g.now())
	}
	return st, nil
}

// MapMidtransStatus reports whether a notification settles the order and whether the order is dead.
func MapMidtransStatus(transactionStatus, fraudStatus string) (settled, final bool) {
	ts := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
	switch ts {
	case "capture":
		// capture + fraud=accept -> paid, challenge -> still waiting
		if fraud == "" || fraud == "accept" {
			return true, true
		}
		if fraud == "challenge" {
			return false, false
		}
		return false, true
	case "settlement":
		return true, true
	case "deny", "cancel", "expire", "failure", "refund", "partial_refund":
		return false, true
	}
	// pending, authorize, unknown
	return false, false
}

// ParseMidtransTime parses a Midtrans local timestamp, falling back to fallback.
func ParseMidtransTime(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC()
	}
	t, err := time.ParseInLocation(midtransTimeLayout, s, midtransZone)
	if err != nil {
		return fallback.UTC()
	}
	return t.UTC()
}

// MidtransSignature is hex(SHA512(order_id + status_code + gross_amount + server_key)).
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

func VerifyMidtransSignature(orderID, statusCode, grossAmount, signature, serverKey string) bool {
	if signature == "" || serverKey == "" {
		return false
	}
	want := MidtransSignature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(signature))) == 1
}

/* =========================================================
   Utils
========================================================= */

// withContext runs a blocking SDK call and gives up when ctx ends.
// The SDK call itself keeps running until its own HTTP timeout.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// truncate keeps at most n characters, never splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func defaultString(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}
