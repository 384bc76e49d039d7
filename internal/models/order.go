package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderAddOn struct {
	ServiceID string          `json:"serviceId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

type DamageClaim struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Images       []string        `json:"images"`
	Status       string          `json:"status"` // pending, approved, rejected
	RefundAmount decimal.Decimal `json:"refundAmount"`
	FiledAt      time.Time       `json:"filedAt"`
	ResolvedAt   *time.Time      `json:"resolvedAt,omitempty"`
	ResolvedBy   string          `json:"resolvedBy,omitempty"`
}

type Order struct {
	ID                   string          `json:"id"`
	CustomerID           string          `json:"customerId"`
	CustomerEmail        string          `json:"customerEmail,omitempty"`
	VendorID             string          `json:"vendorId"`
	ProductID            string          `json:"productId"`
	ProductTitle         string          `json:"productTitle"`
	StartDate            string          `json:"startDate"`
	EndDate              string          `json:"endDate"`
	RentalDays           int             `json:"rentalDays"`
	DailyPrice           decimal.Decimal `json:"dailyPrice"`
	RentalFee            decimal.Decimal `json:"rentalFee"`
	SecurityDeposit      decimal.Decimal `json:"securityDeposit"`
	AddOnServices        []OrderAddOn    `json:"addOnServices"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	Commission           decimal.Decimal `json:"commission"`
	Status               string          `json:"status"`
	PaymentStatus        string          `json:"paymentStatus"`
	PaymentReference     string          `json:"paymentReference,omitempty"`
	PaidAt               *time.Time      `json:"paidAt,omitempty"`
	DeliveryAddress      string          `json:"deliveryAddress,omitempty"`
	DeliveryInstructions string          `json:"deliveryInstructions,omitempty"`
	DamageClaim          *DamageClaim    `json:"damageClaim,omitempty"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// AddOnTotal sums the prices of the order's add-on services.
func (o *Order) AddOnTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range o.AddOnServices {
		sum = sum.Add(a.Price)
	}
	return sum
}

// VendorEarnings is what the vendor is owed once the order is settled.
func (o *Order) VendorEarnings() decimal.Decimal {
	return o.TotalAmount.Sub(o.Commission)
}

// InvolvesUser reports whether uid is the customer or vendor on the order.
func (o *Order) InvolvesUser(uid string) bool {
	return uid != "" && (o.CustomerID == uid || o.VendorID == uid)
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	CustomerID    string
	VendorID      string
	Status        string
	PaymentStatus string
	From          time.Time
	To            time.Time
	WithClaims    bool
}

// StatusChange describes a conditional status update.
type StatusChange struct {
	OrderID string
	From    string
	To      string
	// ReleaseSlots frees the reserved inventory, used on cancellation.
	ReleaseSlots bool
}
