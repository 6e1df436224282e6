// Package events defines the notification stream the bot publishes for the
// admin side: every successful order mutation becomes one event. The chat
// gateway (or cmd/relay during development) consumes the topic and posts the
// rendered message into the admin channel.
package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderEdited        = "OrderEdited"
	EventOrderCompleted     = "OrderCompleted"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventProductsChanged    = "ProductsChanged"
)

// DefaultTopic is used when NOTIFY_TOPIC is unset.
const DefaultTopic = "orderbot.notifications"

type Envelope struct {
	EventID      string          `json:"event_id"` // uuid
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"` // 1
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"` // service name
	UserID       string          `json:"user_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// NotificationPayload carries a pre-rendered admin message plus enough
// structure for consumers that want to format their own.
type NotificationPayload struct {
	Message string `json:"message"`
	Product string `json:"product,omitempty"`
	Amount  int    `json:"amount,omitempty"`
	Status  string `json:"status,omitempty"`
}

// PartitionKey keys messages by user so one user's notifications stay in
// order.
func PartitionKey(userID string) []byte { return []byte(userID) }
