package gyms

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	m "academia_backend/internals/features/finance/billings/model"
)

//go:embed data_gyms.json
var DemoGyms []byte

type planSeed struct {
	PlanID uuid.UUID `json:"plan_id"`
	Name   string    `json:"name"`
	Price  int64     `json:"price"`
}

type memberSeed struct {
	MemberID     uuid.UUID  `json:"member_id"`
	Name         string     `json:"name"`
	ExternalCode string     `json:"external_code"`
	Status       string     `json:"status"`
	PlanID       *uuid.UUID `json:"plan_id"`
	StartDate    string     `json:"start_date"`
}

type gymSeed struct {
	TenantID      uuid.UUID    `json:"tenant_id"`
	Name          string       `json:"name"`
	PlatformPrice int64        `json:"platform_price"`
	BillingDay    int          `json:"billing_day"`
	Plans         []planSeed   `json:"plans"`
	Members       []memberSeed `json:"members"`
}

// SeedGymsFromJSON inserts tenants with their plans, members and subscriptions.
// A tenant that already exists is skipped entirely, so the seed can run on every boot.
func SeedGymsFromJSON(db *gorm.DB, data []byte, log *zap.Logger) (int, error) {
	var seeds []gymSeed
	if err := sonic.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("decode gym seed: %w", err)
	}

	created := 0
	for _, g := range seeds {
		var n int64
		if err := db.Model(&m.Tenant{}).Where("tenant_id = ?", g.TenantID).Count(&n).Error; err != nil {
			return created, err
		}
		if n > 0 {
			log.Info("seed: tenant exists, skipped", zap.String("tenant", g.Name))
			continue
		}
		if err := db.Transaction(func(tx *gorm.DB) error { return seedGym(tx, g) }); err != nil {
			return created, fmt.Errorf("seed %s: %w", g.Name, err)
		}
		created++
		log.Info("seed: tenant created", zap.String("tenant", g.Name),
			zap.Int("plans", len(g.Plans)), zap.Int("members", len(g.Members)))
	}
	return created, nil
}

func seedGym(tx *gorm.DB, g gymSeed) error {
	tenant := m.Tenant{
		TenantID:            g.TenantID,
		TenantName:          g.Name,
		TenantPlatformPrice: g.PlatformPrice,
		TenantBillingDay:    g.BillingDay,
	}
	if err := tx.Create(&tenant).Error; err != nil {
		return err
	}
	for _, p := range g.Plans {
		if err := tx.Create(&m.Plan{
			PlanID:       p.PlanID,
			PlanTenantID: g.TenantID,
			PlanName:     p.Name,
			PlanPrice:    p.Price,
			PlanIsActive: true,
		}).Error; err != nil {
			return err
		}
	}
	for _, s := range g.Members {
		if err := tx.Create(&m.Member{
			MemberID:           s.MemberID,
			MemberTenantID:     g.TenantID,
			MemberName:         s.Name,
			MemberStatus:       m.MembershipStatus(s.Status),
			MemberExternalCode: s.ExternalCode,
		}).Error; err != nil {
			return err
		}
		if s.PlanID == nil {
			continue
		}
		start, err := time.Parse("2006-01-02", s.StartDate)
		if err != nil {
			return fmt.Errorf("member %s start_date: %w", s.Name, err)
		}
		if err := tx.Create(&m.Subscription{
			SubscriptionTenantID:  g.TenantID,
			SubscriptionPayerID:   s.MemberID,
			SubscriptionPlanID:    *s.PlanID,
			SubscriptionStartDate: start,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}
