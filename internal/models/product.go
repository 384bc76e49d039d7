package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AddOnService struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Mandatory   bool            `json:"mandatory" yaml:"mandatory"`
}

type Product struct {
	ID              string          `json:"id" yaml:"id"`
	VendorID        string          `json:"vendorId" yaml:"vendor_id"`
	VendorName      string          `json:"vendorName" yaml:"vendor_name"`
	Title           string          `json:"title" yaml:"title"`
	Description     string          `json:"description" yaml:"description"`
	Category        string          `json:"category" yaml:"category"`
	City            string          `json:"city" yaml:"city"`
	State           string          `json:"state" yaml:"state"`
	DailyPrice      decimal.Decimal `json:"dailyPrice" yaml:"daily_price"`
	WeeklyPrice     decimal.Decimal `json:"weeklyPrice" yaml:"weekly_price"`
	SecurityDeposit decimal.Decimal `json:"securityDeposit" yaml:"security_deposit"`
	AddOnServices   []AddOnService  `json:"addOnServices,omitempty" yaml:"add_on_services"`
	Available       bool            `json:"available" yaml:"available"`
	CreatedAt       time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt       time.Time       `json:"updatedAt" yaml:"-"`
}

// AddOn looks up one of the product's add-on services by id.
func (p *Product) AddOn(id string) (AddOnService, bool) {
	for _, a := range p.AddOnServices {
		if a.ID == id {
			return a, true
		}
	}
	return AddOnService{}, false
}
