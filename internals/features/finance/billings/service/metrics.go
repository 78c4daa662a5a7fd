package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SweepCharges     *prometheus.CounterVec
	GeneratedCharges *prometheus.CounterVec
	InstallmentPlans prometheus.Counter
	Settlements      *prometheus.CounterVec
	BillingCycles    *prometheus.CounterVec
	TenantStatus     *prometheus.CounterVec
}

// NewMetrics builds the billing collectors and registers them on reg (nil = unregistered).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	mt := &Metrics{
		SweepCharges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "sweep_charges_total",
			Help:      "Charges visited by the overdue sweep, by result.",
		}, []string{"result"}),
		GeneratedCharges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "generated_charges_total",
			Help:      "Monthly generator outcomes, by result.",
		}, []string{"result"}),
		InstallmentPlans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "installment_plans_total",
			Help:      "Installment plans created.",
		}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "settlements_total",
			Help:      "Charge settlements, by payment method and result.",
		}, []string{"method", "result"}),
		BillingCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "billing_cycles_total",
			Help:      "Platform billing cycle events, by event.",
		}, []string{"event"}),
		TenantStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "tenant_status_changes_total",
			Help:      "Tenant suspensions and reactivations.",
		}, []string{"to"}),
	}
	if reg != nil {
		reg.MustRegister(mt.SweepCharges, mt.GeneratedCharges, mt.InstallmentPlans,
			mt.Settlements, mt.BillingCycles, mt.TenantStatus)
	}
	return mt
}
