// Package notify delivers outbox notification tasks over email, Telegram and
// the Google Sheets ledger.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"renthaus/internal/domain"
	"renthaus/internal/models"
	"renthaus/internal/worker"

	"github.com/rs/zerolog"
)

// Store is the read access the dispatcher needs.
type Store interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetUser(ctx context.Context, uid string) (*models.User, error)
}

// Dispatcher routes outbox tasks to their channel. A channel that is not
// configured is skipped and the task completes.
type Dispatcher struct {
	store     Store
	email     domain.EmailSender
	chat      domain.ChatSender
	ledger    domain.LedgerWriter
	templates *Templates
	appName   string
	publicURL string
	logger    *zerolog.Logger
}

type DispatcherOptions struct {
	Email     domain.EmailSender
	Chat      domain.ChatSender
	Ledger    domain.LedgerWriter
	AppName   string
	PublicURL string
}

func NewDispatcher(store Store, templates *Templates, opts DispatcherOptions, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		email:     opts.Email,
		chat:      opts.Chat,
		ledger:    opts.Ledger,
		templates: templates,
		appName:   opts.AppName,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		logger:    logger,
	}
}

var _ worker.Handler = (*Dispatcher)(nil)

func (d *Dispatcher) Handle(ctx context.Context, task *models.OutboxTask) error {
	var payload models.NotificationPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return fmt.Errorf("%w: decode payload: %v", worker.ErrPermanent, err)
	}

	switch task.TaskType {
	case models.TaskEmailPaymentSuccess:
		return d.paymentSuccess(ctx, payload)
	case models.TaskEmailStatusUpdate:
		return d.statusUpdate(ctx, payload)
	case models.TaskEmailNewMessage:
		return d.newMessage(ctx, payload)
	case models.TaskTelegramVendorOrder:
		return d.vendorTelegram(ctx, payload)
	case models.TaskLedgerOrder:
		return d.ledgerOrder(ctx, payload)
	default:
		return fmt.Errorf("%w: unknown task type %q", worker.ErrPermanent, task.TaskType)
	}
}

func (d *Dispatcher) loadOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := d.store.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", worker.ErrPermanent, err)
	}
	return order, err
}

// loadVendor returns nil without error when the vendor has no user record.
func (d *Dispatcher) loadVendor(ctx context.Context, uid string) (*models.User, error) {
	user, err := d.store.GetUser(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (d *Dispatcher) orderData(order *models.Order) EmailData {
	data := EmailData{
		AppName:      d.appName,
		OrderID:      order.ID,
		ProductTitle: order.ProductTitle,
		StartDate:    order.StartDate,
		EndDate:      order.EndDate,
		Total:        order.TotalAmount.StringFixed(2),
		Earnings:     order.VendorEarnings().StringFixed(2),
		Status:       order.Status,
	}
	if d.publicURL != "" {
		data.OrderURL = d.publicURL + "/dashboard/orders/" + order.ID
	}
	return data
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, template string, data EmailData) error {
	html, err := d.templates.Render(template, data)
	if err != nil {
		return fmt.Errorf("%w: %v", worker.ErrPermanent, err)
	}
	return d.email.Send(ctx, domain.EmailMessage{
		To:       to,
		Subject:  Subject(template, data),
		HTMLBody: html,
		TextBody: PlainText(template, data),
	})
}

func (d *Dispatcher) paymentSuccess(ctx context.Context, payload models.NotificationPayload) error {
	if d.email == nil {
		d.logger.Info().Str("order_id", payload.OrderID).Msg("Email not configured, skipping payment notification")
		return nil
	}
	order, err := d.loadOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	data := d.orderData(order)
	customerEmail := order.CustomerEmail
	if customerEmail == "" {
		customerEmail = payload.CustomerEmail
	}
	if customerEmail != "" {
		if err := d.sendEmail(ctx, customerEmail, TemplatePaymentSuccess, data); err != nil {
			return err
		}
	}

	vendor, err := d.loadVendor(ctx, order.VendorID)
	if err != nil {
		return err
	}
	if vendor != nil && vendor.Email != "" {
		data.ForVendor = true
		if err := d.sendEmail(ctx, vendor.Email, TemplatePaymentSuccess, data); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) statusUpdate(ctx context.Context, payload models.NotificationPayload) error {
	if d.email == nil {
		d.logger.Info().Str("order_id", payload.OrderID).Msg("Email not configured, skipping status notification")
		return nil
	}
	order, err := d.loadOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	to := payload.CustomerEmail
	if to == "" {
		to = order.CustomerEmail
	}
	if to == "" {
		d.logger.Warn().Str("order_id", order.ID).Msg("Order has no customer email")
		return nil
	}

	data := d.orderData(order)
	if payload.Status != "" {
		data.Status = payload.Status
	}
	data.Message = payload.Message
	return d.sendEmail(ctx, to, TemplateStatusUpdate, data)
}

func (d *Dispatcher) newMessage(ctx context.Context, payload models.NotificationPayload) error {
	if d.email == nil {
		d.logger.Info().Msg("Email not configured, skipping message notification")
		return nil
	}
	if payload.CustomerEmail == "" {
		return fmt.Errorf("%w: recipient missing", worker.ErrPermanent)
	}
	data := EmailData{AppName: d.appName, OrderID: payload.OrderID, Message: payload.Message}
	if d.publicURL != "" {
		data.OrderURL = d.publicURL + "/dashboard/messages"
	}
	return d.sendEmail(ctx, payload.CustomerEmail, TemplateNewMessage, data)
}

func (d *Dispatcher) vendorTelegram(ctx context.Context, payload models.NotificationPayload) error {
	if d.chat == nil {
		d.logger.Info().Str("order_id", payload.OrderID).Msg("Telegram not configured, skipping vendor alert")
		return nil
	}
	order, err := d.loadOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	vendor, err := d.loadVendor(ctx, order.VendorID)
	if err != nil {
		return err
	}
	if vendor == nil || vendor.TelegramChatID == 0 {
		d.logger.Debug().Str("vendor_id", order.VendorID).Msg("Vendor has no telegram chat")
		return nil
	}
	return d.chat.SendText(ctx, vendor.TelegramChatID, vendorOrderText(order))
}

func (d *Dispatcher) ledgerOrder(ctx context.Context, payload models.NotificationPayload) error {
	if d.ledger == nil {
		d.logger.Info().Str("order_id", payload.OrderID).Msg("Ledger not configured, skipping")
		return nil
	}
	order, err := d.loadOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	return d.ledger.AppendOrder(ctx, order)
}

func vendorOrderText(o *models.Order) string {
	var b strings.Builder
	b.WriteString("New paid booking\n")
	fmt.Fprintf(&b, "Product: %s\n", o.ProductTitle)
	fmt.Fprintf(&b, "Dates: %s to %s (%d days)\n", o.StartDate, o.EndDate, o.RentalDays)
	if o.DeliveryAddress != "" {
		fmt.Fprintf(&b, "Delivery: %s\n", o.DeliveryAddress)
	}
	fmt.Fprintf(&b, "Total: NGN %s\n", o.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "Your earnings: NGN %s\n", o.VendorEarnings().StringFixed(2))
	fmt.Fprintf(&b, "Order: %s", o.ID)
	return b.String()
}
