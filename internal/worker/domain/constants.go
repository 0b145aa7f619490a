package domain

// Delivery status constants
const (
	DeliveryStatusPending   = "PENDING"
	DeliveryStatusDelivered = "DELIVERED"
	DeliveryStatusFailed    = "FAILED"
	DeliveryStatusSkipped   = "SKIPPED"
)

// Routing keys used on the booking exchange
const (
	RoutingKeyEmail = "notify.email"
	RoutingKeySMS   = "notify.sms"
	RoutingKeyPush  = "notify.push"

	// EventRoutingPrefix is prepended to lifecycle event names
	EventRoutingPrefix = "event."
)
