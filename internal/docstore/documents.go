package docstore

import (
	"fmt"
	"time"

	"renthaus/internal/models"

	"github.com/shopspring/decimal"
)

// Money is stored as decimal strings so amounts survive round trips exactly.

type addOnDoc struct {
	ID          string `firestore:"id"`
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
	Price       string `firestore:"price"`
	Mandatory   bool   `firestore:"mandatory"`
}

type productDoc struct {
	ID              string     `firestore:"id"`
	VendorID        string     `firestore:"vendorId"`
	VendorName      string     `firestore:"vendorName"`
	Title           string     `firestore:"title"`
	Description     string     `firestore:"description"`
	Category        string     `firestore:"category"`
	City            string     `firestore:"city"`
	State           string     `firestore:"state"`
	DailyPrice      string     `firestore:"dailyPrice"`
	WeeklyPrice     string     `firestore:"weeklyPrice"`
	SecurityDeposit string     `firestore:"securityDeposit"`
	AddOnServices   []addOnDoc `firestore:"addOnServices"`
	Available       bool       `firestore:"available"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

type slotDoc struct {
	ProductID string    `firestore:"productId"`
	Date      string    `firestore:"date"`
	Available bool      `firestore:"available"`
	OrderID   string    `firestore:"orderId"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type orderAddOnDoc struct {
	ServiceID string `firestore:"serviceId"`
	Name      string `firestore:"name"`
	Price     string `firestore:"price"`
}

type claimDoc struct {
	Description  string     `firestore:"description"`
	Amount       string     `firestore:"amount"`
	Images       []string   `firestore:"images"`
	Status       string     `firestore:"status"`
	RefundAmount string     `firestore:"refundAmount"`
	FiledAt      time.Time  `firestore:"filedAt"`
	ResolvedAt   *time.Time `firestore:"resolvedAt"`
	ResolvedBy   string     `firestore:"resolvedBy"`
}

type orderDoc struct {
	ID                   string          `firestore:"id"`
	CustomerID           string          `firestore:"customerId"`
	CustomerEmail        string          `firestore:"customerEmail"`
	VendorID             string          `firestore:"vendorId"`
	ProductID            string          `firestore:"productId"`
	ProductTitle         string          `firestore:"productTitle"`
	StartDate            string          `firestore:"startDate"`
	EndDate              string          `firestore:"endDate"`
	RentalDays           int             `firestore:"rentalDays"`
	DailyPrice           string          `firestore:"dailyPrice"`
	RentalFee            string          `firestore:"rentalFee"`
	SecurityDeposit      string          `firestore:"securityDeposit"`
	AddOnServices        []orderAddOnDoc `firestore:"addOnServices"`
	TotalAmount          string          `firestore:"totalAmount"`
	Commission           string          `firestore:"commission"`
	Status               string          `firestore:"status"`
	PaymentStatus        string          `firestore:"paymentStatus"`
	PaymentReference     string          `firestore:"paymentReference"`
	PaidAt               *time.Time      `firestore:"paidAt"`
	DeliveryAddress      string          `firestore:"deliveryAddress"`
	DeliveryInstructions string          `firestore:"deliveryInstructions"`
	ClaimStatus          string          `firestore:"claimStatus"`
	DamageClaim          *claimDoc       `firestore:"damageClaim"`
	Version              int64           `firestore:"version"`
	CreatedAt            time.Time       `firestore:"createdAt"`
	UpdatedAt            time.Time       `firestore:"updatedAt"`
}

type userDoc struct {
	UID                string    `firestore:"uid"`
	Email              string    `firestore:"email"`
	DisplayName        string    `firestore:"displayName"`
	Role               string    `firestore:"role"`
	PhoneNumber        string    `firestore:"phoneNumber"`
	BusinessName       string    `firestore:"businessName"`
	RegistrationStatus string    `firestore:"registrationStatus"`
	Verified           bool      `firestore:"verified"`
	TelegramChatID     int64     `firestore:"telegramChatId"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
}

type outboxDoc struct {
	ID          string     `firestore:"id"`
	TaskType    string     `firestore:"taskType"`
	AggregateID string     `firestore:"aggregateId"`
	Payload     string     `firestore:"payload"`
	Status      string     `firestore:"status"`
	RetryCount  int        `firestore:"retryCount"`
	LastError   *string    `firestore:"lastError"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	LockedAt    *time.Time `firestore:"lockedAt"`
	ProcessedAt *time.Time `firestore:"processedAt"`
	NextRetryAt *time.Time `firestore:"nextRetryAt"`
}

func parseMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return d, nil
}

func toProductDoc(p *models.Product) productDoc {
	d := productDoc{
		ID: p.ID, VendorID: p.VendorID, VendorName: p.VendorName, Title: p.Title,
		Description: p.Description, Category: p.Category, City: p.City, State: p.State,
		DailyPrice: p.DailyPrice.String(), WeeklyPrice: p.WeeklyPrice.String(),
		SecurityDeposit: p.SecurityDeposit.String(), Available: p.Available,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	for _, a := range p.AddOnServices {
		d.AddOnServices = append(d.AddOnServices, addOnDoc{
			ID: a.ID, Name: a.Name, Description: a.Description, Price: a.Price.String(), Mandatory: a.Mandatory,
		})
	}
	return d
}

func (d productDoc) model() (*models.Product, error) {
	p := &models.Product{
		ID: d.ID, VendorID: d.VendorID, VendorName: d.VendorName, Title: d.Title,
		Description: d.Description, Category: d.Category, City: d.City, State: d.State,
		Available: d.Available, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	var err error
	if p.DailyPrice, err = parseMoney("dailyPrice", d.DailyPrice); err != nil {
		return nil, err
	}
	if p.WeeklyPrice, err = parseMoney("weeklyPrice", d.WeeklyPrice); err != nil {
		return nil, err
	}
	if p.SecurityDeposit, err = parseMoney("securityDeposit", d.SecurityDeposit); err != nil {
		return nil, err
	}
	for _, a := range d.AddOnServices {
		price, err := parseMoney("addOn.price", a.Price)
		if err != nil {
			return nil, err
		}
		p.AddOnServices = append(p.AddOnServices, models.AddOnService{
			ID: a.ID, Name: a.Name, Description: a.Description, Price: price, Mandatory: a.Mandatory,
		})
	}
	return p, nil
}

func toClaimDoc(c *models.DamageClaim) *claimDoc {
	if c == nil {
		return nil
	}
	return &claimDoc{
		Description: c.Description, Amount: c.Amount.String(), Images: c.Images, Status: c.Status,
		RefundAmount: c.RefundAmount.String(), FiledAt: c.FiledAt, ResolvedAt: c.ResolvedAt, ResolvedBy: c.ResolvedBy,
	}
}

func (d *claimDoc) model() (*models.DamageClaim, error) {
	if d == nil {
		return nil, nil
	}
	c := &models.DamageClaim{
		Description: d.Description, Images: d.Images, Status: d.Status,
		FiledAt: d.FiledAt, ResolvedAt: d.ResolvedAt, ResolvedBy: d.ResolvedBy,
	}
	var err error
	if c.Amount, err = parseMoney("claim.amount", d.Amount); err != nil {
		return nil, err
	}
	if c.RefundAmount, err = parseMoney("claim.refundAmount", d.RefundAmount); err != nil {
		return nil, err
	}
	return c, nil
}

func toOrderDoc(o *models.Order) orderDoc {
	d := orderDoc{
		ID: o.ID, CustomerID: o.CustomerID, CustomerEmail: o.CustomerEmail, VendorID: o.VendorID,
		ProductID: o.ProductID, ProductTitle: o.ProductTitle, StartDate: o.StartDate, EndDate: o.EndDate,
		RentalDays: o.RentalDays, DailyPrice: o.DailyPrice.String(), RentalFee: o.RentalFee.String(),
		SecurityDeposit: o.SecurityDeposit.String(), TotalAmount: o.TotalAmount.String(),
		Commission: o.Commission.String(), Status: o.Status, PaymentStatus: o.PaymentStatus,
		PaymentReference: o.PaymentReference, PaidAt: o.PaidAt, DeliveryAddress: o.DeliveryAddress,
		DeliveryInstructions: o.DeliveryInstructions, DamageClaim: toClaimDoc(o.DamageClaim),
		Version: o.Version, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
	if o.DamageClaim != nil {
		d.ClaimStatus = o.DamageClaim.Status
	}
	for _, a := range o.AddOnServices {
		d.AddOnServices = append(d.AddOnServices, orderAddOnDoc{ServiceID: a.ServiceID, Name: a.Name, Price: a.Price.String()})
	}
	return d
}

func (d orderDoc) model() (*models.Order, error) {
	o := &models.Order{
		ID: d.ID, CustomerID: d.CustomerID, CustomerEmail: d.CustomerEmail, VendorID: d.VendorID,
		ProductID: d.ProductID, ProductTitle: d.ProductTitle, StartDate: d.StartDate, EndDate: d.EndDate,
		RentalDays: d.RentalDays, Status: d.Status, PaymentStatus: d.PaymentStatus,
		PaymentReference: d.PaymentReference, PaidAt: d.PaidAt, DeliveryAddress: d.DeliveryAddress,
		DeliveryInstructions: d.DeliveryInstructions, Version: d.Version, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"dailyPrice", d.DailyPrice, &o.DailyPrice},
		{"rentalFee", d.RentalFee, &o.RentalFee},
		{"securityDeposit", d.SecurityDeposit, &o.SecurityDeposit},
		{"totalAmount", d.TotalAmount, &o.TotalAmount},
		{"commission", d.Commission, &o.Commission},
	}
	for _, f := range fields {
		v, err := parseMoney(f.name, f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	for _, a := range d.AddOnServices {
		price, err := parseMoney("addOn.price", a.Price)
		if err != nil {
			return nil, err
		}
		o.AddOnServices = append(o.AddOnServices, models.OrderAddOn{ServiceID: a.ServiceID, Name: a.Name, Price: price})
	}
	claim, err := d.DamageClaim.model()
	if err != nil {
		return nil, err
	}
	o.DamageClaim = claim
	return o, nil
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		UID: u.UID, Email: u.Email, DisplayName: u.DisplayName, Role: u.Role, PhoneNumber: u.PhoneNumber,
		BusinessName: u.BusinessName, RegistrationStatus: u.RegistrationStatus, Verified: u.Verified,
		TelegramChatID: u.TelegramChatID, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (d userDoc) model() *models.User {
	return &models.User{
		UID: d.UID, Email: d.Email, DisplayName: d.DisplayName, Role: d.Role, PhoneNumber: d.PhoneNumber,
		BusinessName: d.BusinessName, RegistrationStatus: d.RegistrationStatus, Verified: d.Verified,
		TelegramChatID: d.TelegramChatID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func toOutboxDoc(t *models.OutboxTask) outboxDoc {
	return outboxDoc{
		ID: t.ID, TaskType: t.TaskType, AggregateID: t.AggregateID, Payload: t.Payload, Status: t.Status,
		RetryCount: t.RetryCount, LastError: t.LastError, CreatedAt: t.CreatedAt, LockedAt: t.LockedAt,
		ProcessedAt: t.ProcessedAt, NextRetryAt: t.NextRetryAt,
	}
}

func (d outboxDoc) model() models.OutboxTask {
	return models.OutboxTask{
		ID: d.ID, TaskType: d.TaskType, AggregateID: d.AggregateID, Payload: d.Payload, Status: d.Status,
		RetryCount: d.RetryCount, LastError: d.LastError, CreatedAt: d.CreatedAt, LockedAt: d.LockedAt,
		ProcessedAt: d.ProcessedAt, NextRetryAt: d.NextRetryAt,
	}
}
