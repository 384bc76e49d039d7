package domain

import (
	"context"
	"time"

	"renthaus/internal/models"
)

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListProductsByVendor(ctx context.Context, vendorID string) ([]*models.Product, error)
	UpsertProduct(ctx context.Context, product *models.Product) error
}

type InventoryRepository interface {
	// GetSlots returns the slots that exist for the given days. Missing days
	// are simply absent from the result.
	GetSlots(ctx context.Context, productID string, dates []string) (map[string]*models.InventorySlot, error)
	// SetSlotAvailability upserts an explicit slot. A slot held by an order
	// cannot be changed and yields a ConflictError.
	SetSlotAvailability(ctx context.Context, productID, date string, available bool) error
}

type OrderRepository interface {
	// CreateOrderWithReservation flips every date from available to reserved
	// and inserts the order in one transaction. If any date is no longer
	// available nothing is written and a ConflictError names that date.
	CreateOrderWithReservation(ctx context.Context, order *models.Order, dates []string) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	// UpdateOrderStatus applies change only if the order is still in
	// change.From and writes tasks in the same transaction.
	UpdateOrderStatus(ctx context.Context, change models.StatusChange, tasks []*models.OutboxTask) error
	// MarkOrderPaid sets paid+confirmed unless the order is already paid.
	// It reports whether the update was applied; tasks are written only then.
	MarkOrderPaid(ctx context.Context, orderID, reference string, paidAt time.Time, tasks []*models.OutboxTask) (bool, error)
	FileDamageClaim(ctx context.Context, orderID string, claim *models.DamageClaim) error
	ResolveDamageClaim(ctx context.Context, orderID string, claim *models.DamageClaim) error
}

type UserRepository interface {
	GetUser(ctx context.Context, uid string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	ListVendors(ctx context.Context, registrationStatus string) ([]*models.User, error)
	SetVendorApproval(ctx context.Context, uid, registrationStatus string, verified bool) error
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetOutboxTask(ctx context.Context, id string) (*models.OutboxTask, error)
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	// ClaimOutboxTask moves a pending or retry task to processing. It
	// reports false if another worker claimed it first.
	ClaimOutboxTask(ctx context.Context, id string) (bool, error)
	UpdateOutboxTaskStatus(ctx context.Context, id, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error)
	// ReleaseStaleOutboxTasks returns tasks stuck in processing since before
	// the cutoff to the retry state.
	ReleaseStaleOutboxTasks(ctx context.Context, lockedBefore time.Time) (int, error)
	RequeueFailedOutboxTasks(ctx context.Context) (int, error)
}

// Store is the full persistence surface, implemented by the SQL database and
// by the Firestore document store.
type Store interface {
	ProductRepository
	InventoryRepository
	OrderRepository
	UserRepository
	OutboxRepository
	Ping(ctx context.Context) error
	Close() error
}

// GuardRepository holds short-lived coordination state: idempotency keys and
// rate-limit windows.
type GuardRepository interface {
	// Claim reserves key for the caller. If the key is already held it
	// returns the stored value and false.
	Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Complete(ctx context.Context, key, value string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OutboxNotifier wakes the outbox worker after tasks were committed.
type OutboxNotifier interface {
	Notify(ctx context.Context, tasks []*models.OutboxTask)
}

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// PaymentGateway is the hosted-checkout provider.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req PaymentInitRequest) (*PaymentSession, error)
	VerifyTransaction(ctx context.Context, reference string) (*PaymentTransaction, error)
}

type PaymentInitRequest struct {
	Email       string
	AmountKobo  int64
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type PaymentSession struct {
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Reference        string `json:"reference"`
}

// PaymentTransaction is the gateway's view of a payment.
type PaymentTransaction struct {
	Reference       string         `json:"reference"`
	Status          string         `json:"status"`
	AmountKobo      int64          `json:"amount"`
	Currency        string         `json:"currency"`
	GatewayResponse string         `json:"gateway_response"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Raw             map[string]any `json:"-"`
}

// OrderID returns metadata.orderId when present, otherwise the reference.
func (t *PaymentTransaction) OrderID() string {
	if t.Metadata != nil {
		if v, ok := t.Metadata["orderId"].(string); ok && v != "" {
			return v
		}
	}
	return t.Reference
}

type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type ChatSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// LedgerWriter mirrors paid orders into the admin finance ledger.
type LedgerWriter interface {
	AppendOrder(ctx context.Context, order *models.Order) error
}

type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, caller *models.Identity, id string) (*models.Order, error)
	ListOrders(ctx context.Context, caller *models.Identity) ([]*models.Order, error)
	ChangeStatus(ctx context.Context, caller *models.Identity, orderID, status string) (*models.Order, error)
	FileDamageClaim(ctx context.Context, caller *models.Identity, orderID string, req DamageClaimRequest) (*models.Order, error)
	ResolveDamageClaim(ctx context.Context, caller *models.Identity, orderID string, approved bool) (*models.Order, error)
}

type PaymentService interface {
	Initiate(ctx context.Context, req InitiatePaymentRequest) (*PaymentSession, error)
	Verify(ctx context.Context, reference string) (*VerificationResult, error)
}

type InitiatePaymentRequest struct {
	OrderID string
	Email   string
	// Amount is the client's view of the total. It is advisory only.
	Amount string
}

type VerificationResult struct {
	OrderID     string              `json:"orderId"`
	Applied     bool                `json:"applied"`
	Order       *models.Order       `json:"-"`
	Transaction *PaymentTransaction `json:"transaction"`
}

type CreateOrderRequest struct {
	Customer             *models.Identity
	IdempotencyKey       string
	ProductID            string
	StartDate            string
	EndDate              string
	AddOnServiceIDs      []string
	DeliveryAddress      string
	DeliveryInstructions string
	// Client-side pricing, kept only to log mismatches.
	ClientRentalFee       string
	ClientSecurityDeposit string
	ClientTotalAmount     string
	ClientCommission      string
}

// NotificationService queues ad-hoc notifications through the outbox.
type NotificationService interface {
	Enqueue(ctx context.Context, caller *models.Identity, payload models.NotificationPayload) (*models.OutboxTask, error)
}

type DamageClaimRequest struct {
	Description string
	Amount      string
	Images      []string
}
