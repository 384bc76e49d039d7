package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

// Email template names.
const (
	TemplatePaymentSuccess = "payment_success"
	TemplateStatusUpdate   = "order_status_update"
	TemplateNewMessage     = "new_message"
)

//go:embed templates/*.html
var templateFS embed.FS

// EmailData is the view model shared by all email templates.
type EmailData struct {
	AppName      string
	OrderID      string
	ProductTitle string
	StartDate    string
	EndDate      string
	Total        string
	Earnings     string
	Status       string
	Message      string
	OrderURL     string
	ForVendor    bool
}

type Templates struct {
	tmpl *template.Template
}

func LoadTemplates() (*Templates, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Templates{tmpl: tmpl}, nil
}

// Render executes the named template. Values are HTML-escaped.
func (t *Templates) Render(name string, data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Subject returns the subject line for a template.
func Subject(name string, data EmailData) string {
	switch name {
	case TemplatePaymentSuccess:
		if data.ForVendor {
			return fmt.Sprintf("New paid booking: %s", data.ProductTitle)
		}
		return fmt.Sprintf("Payment received for %s", data.ProductTitle)
	case TemplateStatusUpdate:
		return fmt.Sprintf("Your order is now %s", data.Status)
	case TemplateNewMessage:
		return "You have a new message"
	}
	return data.AppName
}

// PlainText is the text/plain alternative of an email.
func PlainText(name string, data EmailData) string {
	switch name {
	case TemplatePaymentSuccess:
		return fmt.Sprintf("Order %s for %s (%s to %s) is paid. Total: NGN %s.",
			data.OrderID, data.ProductTitle, data.StartDate, data.EndDate, data.Total)
	case TemplateStatusUpdate:
		return fmt.Sprintf("Order %s for %s is now %s.", data.OrderID, data.ProductTitle, data.Status)
	default:
		return data.Message
	}
}
