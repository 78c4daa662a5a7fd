package model

type PaymentGatewayProvider string
type GatewayEventStatus string

const (
	GatewayProviderMidtrans PaymentGatewayProvider = "midtrans"
	GatewayProviderOther    PaymentGatewayProvider = "other"
)

const (
	GatewayEventStatusReceived   GatewayEventStatus = "received"
	GatewayEventStatusProcessed  GatewayEventStatus = "processed"
	GatewayEventStatusIgnored    GatewayEventStatus = "ignored"
	GatewayEventStatusDuplicated GatewayEventStatus = "duplicated"
	GatewayEventStatusFailed     GatewayEventStatus = "failed"
)
