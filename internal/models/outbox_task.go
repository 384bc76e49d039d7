package models

import "time"

// Outbox task types.
const (
	TaskEmailPaymentSuccess = "email.payment_success"
	TaskEmailStatusUpdate   = "email.order_status_update"
	TaskEmailNewMessage     = "email.new_message"
	TaskTelegramVendorOrder = "telegram.vendor_order"
	TaskLedgerOrder         = "ledger.order"
)

// Outbox task statuses.
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxRetry      = "retry"
	OutboxCompleted  = "completed"
	OutboxFailed     = "failed"
)

// OutboxTask is a queued side effect, written in the same transaction as the
// state change that caused it.
type OutboxTask struct {
	ID          string     `json:"id"`
	TaskType    string     `json:"task_type"`
	AggregateID string     `json:"aggregate_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	LockedAt    *time.Time `json:"locked_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// NotificationPayload is the body of every notification task.
type NotificationPayload struct {
	Type          string `json:"type"`
	OrderID       string `json:"orderId"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	VendorID      string `json:"vendorId,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message,omitempty"`
}
