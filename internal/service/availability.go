package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"renthaus/internal/calendar"
	"renthaus/internal/domain"
	"renthaus/internal/models"
)

// DateRange is a validated, inclusive booking window.
type DateRange struct {
	Start time.Time
	End   time.Time
	Days  []string
}

func (r *DateRange) StartDate() string { return r.Days[0] }
func (r *DateRange) EndDate() string   { return r.Days[len(r.Days)-1] }

type AvailabilityService struct {
	inventory domain.InventoryRepository
	loc       *time.Location
	maxDays   int
	now       func() time.Time
}

func NewAvailabilityService(inventory domain.InventoryRepository, loc *time.Location, maxDays int) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	if maxDays <= 0 {
		maxDays = models.DefaultMaxRentalDays
	}
	return &AvailabilityService{inventory: inventory, loc: loc, maxDays: maxDays, now: time.Now}
}

func (s *AvailabilityService) Location() *time.Location { return s.loc }

// Today is midnight of the current day in the order timezone.
func (s *AvailabilityService) Today() time.Time {
	return calendar.Midnight(s.now().In(s.loc))
}

func (s *AvailabilityService) ParseDay(raw string) (time.Time, error) {
	d, err := calendar.ParseDay(raw, s.loc)
	if err != nil {
		return time.Time{}, domain.Invalid("%s", err.Error())
	}
	return d, nil
}

// ResolveRange parses and validates a booking window. Past start dates are
// rejected unless allowPast is set.
func (s *AvailabilityService) ResolveRange(startRaw, endRaw string, allowPast bool) (*DateRange, error) {
	start, err := s.ParseDay(startRaw)
	if err != nil {
		return nil, err
	}
	end, err := s.ParseDay(endRaw)
	if err != nil {
		return nil, err
	}

	if n := calendar.DayCount(start, end); n > s.maxDays {
		return nil, domain.Invalid("rental period of %d days exceeds the maximum of %d", n, s.maxDays)
	}
	days, err := calendar.Expand(start, end)
	if errors.Is(err, calendar.ErrInvalidRange) {
		return nil, domain.Invalid("start date %s is after end date %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	if err != nil {
		return nil, err
	}
	if !allowPast && start.Before(s.Today()) {
		return nil, domain.Invalid("start date %s is in the past", days[0])
	}

	return &DateRange{Start: start, End: end, Days: days}, nil
}

// Check requires an explicit available slot for every day and reports the
// first day that has none. It never writes.
func (s *AvailabilityService) Check(ctx context.Context, productID string, days []string) error {
	slots, err := s.inventory.GetSlots(ctx, productID, days)
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}
	for _, d := range days {
		slot, ok := slots[d]
		if !ok || !slot.Available {
			return &domain.UnavailableError{ProductID: productID, Date: d}
		}
	}
	return nil
}

// Calendar describes each day of the range as available, unavailable,
// reserved or not offered.
func (s *AvailabilityService) Calendar(ctx context.Context, productID string, days []string) ([]models.CalendarDay, error) {
	slots, err := s.inventory.GetSlots(ctx, productID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	out := make([]models.CalendarDay, 0, len(days))
	for _, d := range days {
		day := models.CalendarDay{Date: d, State: models.DayNotOffered}
		if slot, ok := slots[d]; ok {
			switch {
			case slot.Reserved():
				day.State = models.DayReserved
				day.OrderID = slot.OrderID
			case slot.Available:
				day.State = models.DayAvailable
			default:
				day.State = models.DayBlocked
			}
		}
		out = append(out, day)
	}
	return out, nil
}
