package models

import "github.com/shopspring/decimal"

// Order lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Damage claim statuses.
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
	ClaimRejected = "rejected"
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Vendor registration statuses.
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// DateLayout is the calendar-day format used for slots and order dates.
const DateLayout = "2006-01-02"

// CommissionRate is the platform cut of an order total.
var CommissionRate = decimal.NewFromInt(10).Div(decimal.NewFromInt(100))

const (
	// DefaultMaxRentalDays caps the length of a single booking.
	DefaultMaxRentalDays = 90

	// DefaultIdempotencyTTL in seconds.
	DefaultIdempotencyTTL = 24 * 60 * 60

	// OutboxQueueSize is the in-memory fallback queue capacity.
	OutboxQueueSize = 128
)
