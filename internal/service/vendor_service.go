package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"renthaus/internal/domain"
	"renthaus/internal/events"
	"renthaus/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VendorStore is the persistence the vendor flows need.
type VendorStore interface {
	domain.UserRepository
	domain.ProductRepository
	domain.InventoryRepository
	domain.OrderRepository
}

type VendorService struct {
	store        VendorStore
	availability *AvailabilityService
	eventBus     domain.EventPublisher
	logger       *zerolog.Logger
}

func NewVendorService(store VendorStore, availability *AvailabilityService, eventBus domain.EventPublisher, logger *zerolog.Logger) *VendorService {
	return &VendorService{store: store, availability: availability, eventBus: eventBus, logger: logger}
}

type vendorApprovalEvent struct {
	VendorID           string `json:"vendorId"`
	RegistrationStatus string `json:"registrationStatus"`
	Verified           bool   `json:"verified"`
	ChangedBy          string `json:"changedBy"`
}

func (s *VendorService) ListVendors(ctx context.Context, registrationStatus string) ([]*models.User, error) {
	switch registrationStatus {
	case "", models.RegistrationPending, models.RegistrationApproved, models.RegistrationRejected:
	default:
		return nil, domain.Invalid("unknown registration status %q", registrationStatus)
	}
	vendors, err := s.store.ListVendors(ctx, registrationStatus)
	if err != nil {
		return nil, err
	}
	if vendors == nil {
		vendors = []*models.User{}
	}
	return vendors, nil
}

// SetApproval approves (verified) or rejects (unverified) a vendor account.
func (s *VendorService) SetApproval(ctx context.Context, caller *models.Identity, uid string, approved bool) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	status := models.RegistrationRejected
	if approved {
		status = models.RegistrationApproved
	}
	if err := s.store.SetVendorApproval(ctx, uid, status, approved); err != nil {
		return nil, err
	}

	s.logger.Info().Str("vendor_id", uid).Str("registration_status", status).Str("by", caller.UID).Msg("Vendor approval changed")
	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventVendorApproval, vendorApprovalEvent{
			VendorID:           uid,
			RegistrationStatus: status,
			Verified:           approved,
			ChangedBy:          caller.UID,
		}); err != nil {
			s.logger.Error().Err(err).Str("vendor_id", uid).Msg("publish event error")
		}
	}
	return s.store.GetUser(ctx, uid)
}

// ownedProduct loads productID and checks that the caller may manage it:
// an admin, or the approved vendor who lists it.
func (s *VendorService) ownedProduct(ctx context.Context, caller *models.Identity, productID string) (*models.Product, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	if productID == "" {
		return nil, domain.Invalid("productId is required")
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return product, nil
	}
	if product.VendorID != caller.UID {
		return nil, domain.ErrForbidden
	}
	user, err := s.store.GetUser(ctx, caller.UID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !user.ApprovedVendor() {
		return nil, fmt.Errorf("%w: vendor account is not approved", domain.ErrForbidden)
	}
	return product, nil
}

// SetAvailability sets one day of a product's calendar. Days held by an order
// cannot be changed.
func (s *VendorService) SetAvailability(ctx context.Context, caller *models.Identity, productID, date string, available bool) error {
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return err
	}
	day, err := s.availability.ParseDay(date)
	if err != nil {
		return err
	}
	key := day.Format(models.DateLayout)
	if err := s.store.SetSlotAvailability(ctx, product.ID, key, available); err != nil {
		return err
	}
	s.logger.Debug().Str("product_id", product.ID).Str("date", key).Bool("available", available).Msg("Slot availability set")
	return nil
}

// OpenRange marks every day of the range available, leaving reserved days
// alone. It returns the number of days changed.
func (s *VendorService) OpenRange(ctx context.Context, caller *models.Identity, productID, start, end string) (int, error) {
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return 0, err
	}
	rng, err := s.availability.ResolveRange(start, end, false)
	if err != nil {
		return 0, err
	}
	slots, err := s.store.GetSlots(ctx, product.ID, rng.Days)
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, d := range rng.Days {
		if slot, ok := slots[d]; ok && (slot.Available || slot.Reserved()) {
			continue
		}
		err := s.store.SetSlotAvailability(ctx, product.ID, d, true)
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			continue
		}
		if err != nil {
			return opened, err
		}
		opened++
	}

	s.logger.Info().Str("product_id", product.ID).Str("start", rng.StartDate()).Str("end", rng.EndDate()).Int("opened", opened).Msg("Opened availability range")
	return opened, nil
}

func (s *VendorService) Calendar(ctx context.Context, caller *models.Identity, productID, start, end string) ([]models.CalendarDay, error) {
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return nil, err
	}
	rng, err := s.availability.ResolveRange(start, end, true)
	if err != nil {
		return nil, err
	}
	return s.availability.Calendar(ctx, product.ID, rng.Days)
}

// ListingInput is the editable part of a product listing.
type ListingInput struct {
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        string                `json:"category"`
	City            string                `json:"city"`
	State           string                `json:"state"`
	DailyPrice      decimal.Decimal       `json:"dailyPrice"`
	WeeklyPrice     decimal.Decimal       `json:"weeklyPrice"`
	SecurityDeposit decimal.Decimal       `json:"securityDeposit"`
	AddOnServices   []models.AddOnService `json:"addOnServices"`
	Available       *bool                 `json:"available"`
}

func (in *ListingInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.Invalid("title is required")
	}
	if !in.DailyPrice.IsPositive() {
		return domain.Invalid("dailyPrice must be greater than zero")
	}
	if in.WeeklyPrice.IsNegative() {
		return domain.Invalid("weeklyPrice must not be negative")
	}
	if in.SecurityDeposit.IsNegative() {
		return domain.Invalid("securityDeposit must not be negative")
	}
	seen := make(map[string]bool, len(in.AddOnServices))
	for i, a := range in.AddOnServices {
		if strings.TrimSpace(a.Name) == "" {
			return domain.Invalid("addOnServices[%d].name is required", i)
		}
		if a.Price.IsNegative() {
			return domain.Invalid("addOnServices[%d].price must not be negative", i)
		}
		if a.ID == "" {
			in.AddOnServices[i].ID = uuid.NewString()
		}
		if seen[in.AddOnServices[i].ID] {
			return domain.Invalid("duplicate add-on service id %q", in.AddOnServices[i].ID)
		}
		seen[in.AddOnServices[i].ID] = true
	}
	return nil
}

func (in *ListingInput) apply(p *models.Product) {
	p.Title = in.Title
	p.Description = strings.TrimSpace(in.Description)
	p.Category = strings.TrimSpace(in.Category)
	p.City = strings.TrimSpace(in.City)
	p.State = strings.TrimSpace(in.State)
	p.DailyPrice = in.DailyPrice
	p.WeeklyPrice = in.WeeklyPrice
	p.SecurityDeposit = in.SecurityDeposit
	p.AddOnServices = append([]models.AddOnService(nil), in.AddOnServices...)
	if in.Available != nil {
		p.Available = *in.Available
	}
}

// Listings returns the caller's own products.
func (s *VendorService) Listings(ctx context.Context, caller *models.Identity) ([]*models.Product, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	if !caller.IsVendor() && !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	products, err := s.store.ListProductsByVendor(ctx, caller.UID)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

// CreateListing adds a product for the calling vendor, who must be approved.
// New listings are available unless the input says otherwise.
func (s *VendorService) CreateListing(ctx context.Context, caller *models.Identity, in ListingInput) (*models.Product, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.store.GetUser(ctx, caller.UID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !user.ApprovedVendor() {
		return nil, fmt.Errorf("%w: vendor account is not approved", domain.ErrForbidden)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	vendorName := user.BusinessName
	if vendorName == "" {
		vendorName = user.DisplayName
	}
	product := &models.Product{ID: uuid.NewString(), VendorID: user.UID, VendorName: vendorName, Available: true}
	in.apply(product)
	if err := s.store.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info().Str("product_id", product.ID).Str("vendor_id", user.UID).Msg("Listing created")
	return product, nil
}

// UpdateListing replaces the editable fields of a listing. The owner, id and
// creation time are kept.
func (s *VendorService) UpdateListing(ctx context.Context, caller *models.Identity, productID string, in ListingInput) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.apply(product)
	if err := s.store.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info().Str("product_id", product.ID).Str("by", caller.UID).Msg("Listing updated")
	return product, nil
}

// SetListingAvailable shows or hides a listing without touching its calendar.
func (s *VendorService) SetListingAvailable(ctx context.Context, caller *models.Identity, productID string, available bool) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return nil, err
	}
	if product.Available == available {
		return product, nil
	}
	product.Available = available
	if err := s.store.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", product.ID).Bool("available", available).Str("by", caller.UID).Msg("Listing availability changed")
	return product, nil
}

// SetAllListingsAvailable activates or deactivates every product in the
// catalog and returns how many actually changed.
func (s *VendorService) SetAllListingsAvailable(ctx context.Context, caller *models.Identity, available bool) (int, error) {
	if !caller.IsAdmin() {
		return 0, domain.ErrForbidden
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, p := range products {
		if p.Available == available {
			continue
		}
		p.Available = available
		if err := s.store.UpsertProduct(ctx, p); err != nil {
			return changed, err
		}
		changed++
	}

	s.logger.Info().Bool("available", available).Int("changed", changed).Str("by", caller.UID).Msg("Bulk listing availability changed")
	return changed, nil
}

// ApprovePending approves every vendor still awaiting review and returns the
// approved accounts.
func (s *VendorService) ApprovePending(ctx context.Context, caller *models.Identity) ([]*models.User, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	pending, err := s.store.ListVendors(ctx, models.RegistrationPending)
	if err != nil {
		return nil, err
	}
	approved := make([]*models.User, 0, len(pending))
	for _, v := range pending {
		user, err := s.SetApproval(ctx, caller, v.UID, true)
		if err != nil {
			return approved, fmt.Errorf("failed to approve vendor %s: %w", v.UID, err)
		}
		approved = append(approved, user)
	}
	return approved, nil
}

type PayoutLine struct {
	OrderID       string          `json:"orderId"`
	ProductTitle  string          `json:"productTitle"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Commission    decimal.Decimal `json:"commission"`
	Earnings      decimal.Decimal `json:"earnings"`
}

type Payouts struct {
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
	PendingPayouts   decimal.Decimal `json:"pendingPayouts"`
	CompletedPayouts decimal.Decimal `json:"completedPayouts"`
	Orders           []PayoutLine    `json:"orders"`
}

// Payouts summarises what the vendor earned: completed and paid orders count
// as paid out, completed orders still awaiting payment as pending.
func (s *VendorService) Payouts(ctx context.Context, caller *models.Identity) (*Payouts, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	if !caller.IsVendor() && !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	orders, err := s.store.ListOrders(ctx, models.OrderFilter{VendorID: caller.UID})
	if err != nil {
		return nil, err
	}
	return SummarizePayouts(orders), nil
}

func SummarizePayouts(orders []*models.Order) *Payouts {
	p := &Payouts{
		TotalEarnings:    decimal.Zero,
		PendingPayouts:   decimal.Zero,
		CompletedPayouts: decimal.Zero,
		Orders:           make([]PayoutLine, 0, len(orders)),
	}
	for _, o := range orders {
		earnings := o.VendorEarnings()
		if o.Status == models.StatusCompleted {
			switch o.PaymentStatus {
			case models.PaymentPaid:
				p.TotalEarnings = p.TotalEarnings.Add(earnings)
				p.CompletedPayouts = p.CompletedPayouts.Add(earnings)
			case models.PaymentPending:
				p.PendingPayouts = p.PendingPayouts.Add(earnings)
			}
		}
		p.Orders = append(p.Orders, PayoutLine{
			OrderID:       o.ID,
			ProductTitle:  o.ProductTitle,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			TotalAmount:   o.TotalAmount,
			Commission:    o.Commission,
			Earnings:      earnings,
		})
	}
	return p
}
