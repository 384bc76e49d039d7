package service

import (
	"context"
	"time"

	"renthaus/internal/calendar"
	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/shopspring/decimal"
)

const defaultReportWindow = 30 * 24 * time.Hour

// TransactionReport is the admin view of orders created in a window.
type TransactionReport struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	Count           int             `json:"count"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	Orders          []*models.Order `json:"orders"`
}

type ReportService struct {
	orders domain.OrderRepository
	loc    *time.Location
	now    func() time.Time
}

func NewReportService(orders domain.OrderRepository, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{orders: orders, loc: loc, now: time.Now}
}

// Window parses an inclusive from/to pair of days. A missing to means today
// and a missing from means thirty days before to.
func (s *ReportService) Window(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := calendar.Midnight(s.now().In(s.loc))
	if toRaw != "" {
		d, err := calendar.ParseDay(toRaw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Invalid("invalid to date: %s", err.Error())
		}
		to = d
	}
	from := calendar.Midnight(to.Add(-defaultReportWindow))
	if fromRaw != "" {
		d, err := calendar.ParseDay(fromRaw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Invalid("invalid from date: %s", err.Error())
		}
		from = d
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, domain.Invalid("from date is after to date")
	}
	// to is inclusive; the query bound is the following midnight.
	return from, to.AddDate(0, 0, 1), nil
}

// Transactions lists orders created in [from, to) with revenue and
// commission totals.
func (s *ReportService) Transactions(ctx context.Context, from, to time.Time) (*TransactionReport, error) {
	orders, err := s.orders.ListOrders(ctx, models.OrderFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	report := &TransactionReport{
		From:            from,
		To:              to,
		Count:           len(orders),
		TotalRevenue:    decimal.Zero,
		TotalCommission: decimal.Zero,
		Orders:          orders,
	}
	if report.Orders == nil {
		report.Orders = []*models.Order{}
	}
	for _, o := range orders {
		report.TotalRevenue = report.TotalRevenue.Add(o.TotalAmount)
		report.TotalCommission = report.TotalCommission.Add(o.Commission)
	}
	return report, nil
}

// Deposits lists orders carrying a damage claim, newest first.
func (s *ReportService) Deposits(ctx context.Context) ([]*models.Order, error) {
	orders, err := s.orders.ListOrders(ctx, models.OrderFilter{WithClaims: true})
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}
