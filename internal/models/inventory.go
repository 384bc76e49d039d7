package models

import "time"

// InventorySlot is the availability of one product on one calendar day.
// A slot that does not exist is treated as not offered.
type InventorySlot struct {
	ProductID string    `json:"productId"`
	Date      string    `json:"date"`
	Available bool      `json:"available"`
	OrderID   string    `json:"orderId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reserved reports whether the slot is held by an order.
func (s *InventorySlot) Reserved() bool {
	return s.OrderID != ""
}

// SlotID is the deterministic key of a slot.
func SlotID(productID, date string) string {
	return productID + "_" + date
}

// Calendar day states.
const (
	DayAvailable  = "available"
	DayBlocked    = "unavailable"
	DayReserved   = "reserved"
	DayNotOffered = "not_offered"
)

type CalendarDay struct {
	Date    string `json:"date"`
	State   string `json:"state"`
	OrderID string `json:"orderId,omitempty"`
}
