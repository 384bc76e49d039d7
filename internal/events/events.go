// Package events is an in-process pub/sub bus for order lifecycle events.
// Durable side effects go through the outbox; subscribers here are for
// audit logging and metrics only.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventOrderCreated       = "order_created"
	EventOrderPaid          = "order_paid"
	EventOrderStatusChanged = "order_status_changed"
	EventClaimFiled         = "damage_claim_filed"
	EventClaimResolved      = "damage_claim_resolved"
	EventVendorApproval     = "vendor_approval"
)

// OrderEventPayload is the order snapshot handed to subscribers.
type OrderEventPayload struct {
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
	Status      string `json:"status,omitempty"`
	FromStatus  string `json:"from_status,omitempty"`
	TotalAmount string `json:"total_amount,omitempty"`
	ChangedBy   string `json:"changed_by,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event *Event) error

type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every event type in types.
func (b *EventBus) SubscribeAll(handler EventHandler, types ...string) {
	for _, t := range types {
		b.Subscribe(t, handler)
	}
}

// Publish runs subscribers synchronously. Handler errors are logged and
// never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("Event handler failed")
		}
	}
}

func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	ev, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&ev)
	return nil
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// AuditLogger returns a handler that writes every event to logger.
func AuditLogger(logger *zerolog.Logger) EventHandler {
	return func(event *Event) error {
		logger.Info().
			Str("event", event.Type).
			RawJSON("payload", event.Payload).
			Time("at", event.CreatedAt).
			Msg("Order event")
		return nil
	}
}
