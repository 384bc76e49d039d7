package service

import (
	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/shopspring/decimal"
)

// Quote is the server-side price of a booking.
type Quote struct {
	Days            int
	DailyPrice      decimal.Decimal
	RentalFee       decimal.Decimal
	SecurityDeposit decimal.Decimal
	AddOns          []models.OrderAddOn
	TotalAmount     decimal.Decimal
	Commission      decimal.Decimal
}

// PriceOrder prices a booking of days from the stored product only.
// Mandatory add-ons are always included; unknown add-on ids are rejected.
func PriceOrder(product *models.Product, days int, addOnIDs []string) (*Quote, error) {
	if days < 1 {
		return nil, domain.Invalid("rental must cover at least one day")
	}

	selected := make(map[string]bool, len(addOnIDs))
	for _, id := range addOnIDs {
		if _, ok := product.AddOn(id); !ok {
			return nil, domain.Invalid("unknown add-on service %q", id)
		}
		selected[id] = true
	}

	q := &Quote{
		Days:            days,
		DailyPrice:      product.DailyPrice,
		RentalFee:       product.DailyPrice.Mul(decimal.NewFromInt(int64(days))),
		SecurityDeposit: product.SecurityDeposit,
	}

	total := q.RentalFee.Add(q.SecurityDeposit)
	for _, a := range product.AddOnServices {
		if !a.Mandatory && !selected[a.ID] {
			continue
		}
		q.AddOns = append(q.AddOns, models.OrderAddOn{ServiceID: a.ID, Name: a.Name, Price: a.Price})
		total = total.Add(a.Price)
	}

	q.TotalAmount = total
	q.Commission = models.Commission(total)
	return q, nil
}

// mismatches compares advisory client pricing with the quote and returns
// the names of fields that differ. Unparseable or empty values are skipped.
func (q *Quote) mismatches(req domain.CreateOrderRequest) []string {
	var out []string
	check := func(name, raw string, want decimal.Decimal) {
		if raw == "" {
			return
		}
		got, err := decimal.NewFromString(raw)
		if err != nil || !got.Equal(want) {
			out = append(out, name)
		}
	}
	check("rentalFee", req.ClientRentalFee, q.RentalFee)
	check("securityDeposit", req.ClientSecurityDeposit, q.SecurityDeposit)
	check("totalAmount", req.ClientTotalAmount, q.TotalAmount)
	check("commission", req.ClientCommission, q.Commission)
	return out
}
