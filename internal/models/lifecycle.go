package models

import "github.com/shopspring/decimal"

var transitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether an order may move from one status to another.
// Completed and cancelled orders are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ClaimableStatus reports whether a damage claim may be filed in this status.
func ClaimableStatus(s string) bool {
	return s == StatusInProgress || s == StatusCompleted
}

// RefundAmount is the part of the deposit returned to the customer once a
// claim is resolved.
func RefundAmount(deposit, claimed decimal.Decimal, approved bool) decimal.Decimal {
	if !approved {
		return deposit
	}
	refund := deposit.Sub(claimed)
	if refund.IsNegative() {
		return decimal.Zero
	}
	return refund
}
