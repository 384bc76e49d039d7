// Package catalog loads vendor and product listings from YAML and writes them
// into a store, opening an initial window of rentable days per product.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"renthaus/internal/calendar"
	"renthaus/internal/domain"
	"renthaus/internal/models"

	"gopkg.in/yaml.v2"
)

type Vendor struct {
	UID            string `yaml:"uid"`
	Email          string `yaml:"email"`
	DisplayName    string `yaml:"display_name"`
	BusinessName   string `yaml:"business_name"`
	PhoneNumber    string `yaml:"phone_number"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	Approved       bool   `yaml:"approved"`
}

type Listing struct {
	models.Product `yaml:",inline"`
	// OpenDays is the number of days from the seed date made available.
	OpenDays int `yaml:"open_days"`
}

type Catalog struct {
	Vendors  []Vendor  `yaml:"vendors"`
	Products []Listing `yaml:"products"`
}

// Store is what seeding writes to.
type Store interface {
	GetUser(ctx context.Context, uid string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	UpsertProduct(ctx context.Context, product *models.Product) error
	GetSlots(ctx context.Context, productID string, dates []string) (map[string]*models.InventorySlot, error)
	SetSlotAvailability(ctx context.Context, productID, date string, available bool) error
}

type Result struct {
	Vendors    int
	Products   int
	DaysOpened int
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	if len(c.Products) == 0 {
		return errors.New("catalog has no products")
	}

	vendors := make(map[string]bool, len(c.Vendors))
	for _, v := range c.Vendors {
		if v.UID == "" {
			return fmt.Errorf("vendor '%s' has no uid", v.Email)
		}
		if vendors[v.UID] {
			return fmt.Errorf("duplicate vendor uid found: %s", v.UID)
		}
		vendors[v.UID] = true
	}

	ids := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return fmt.Errorf("product '%s' has no id", p.Title)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate product id found: %s", p.ID)
		}
		ids[p.ID] = true

		if !vendors[p.VendorID] {
			return fmt.Errorf("product %s references unknown vendor %q", p.ID, p.VendorID)
		}
		if !p.DailyPrice.IsPositive() {
			return fmt.Errorf("product %s: daily_price must be positive", p.ID)
		}
		if p.SecurityDeposit.IsNegative() {
			return fmt.Errorf("product %s: security_deposit must not be negative", p.ID)
		}
		if p.OpenDays < 0 {
			return fmt.Errorf("product %s: open_days must not be negative", p.ID)
		}

		addOns := make(map[string]bool, len(p.AddOnServices))
		for _, a := range p.AddOnServices {
			if a.ID == "" || addOns[a.ID] {
				return fmt.Errorf("product %s: add-on ids must be unique and non-empty", p.ID)
			}
			if a.Price.IsNegative() {
				return fmt.Errorf("product %s: add-on %s has a negative price", p.ID, a.ID)
			}
			addOns[a.ID] = true
		}
	}
	return nil
}

// Apply upserts vendors and products, then opens each product's first
// OpenDays days starting at from. Days that already have a slot keep it.
func Apply(ctx context.Context, store Store, c *Catalog, from time.Time) (Result, error) {
	var res Result
	names := make(map[string]string, len(c.Vendors))

	for _, v := range c.Vendors {
		user := &models.User{UID: v.UID}
		existing, err := store.GetUser(ctx, v.UID)
		switch {
		case err == nil:
			user = existing
		case !errors.Is(err, domain.ErrNotFound):
			return res, fmt.Errorf("get vendor %s: %w", v.UID, err)
		}

		user.Email = strings.TrimSpace(v.Email)
		user.DisplayName = v.DisplayName
		user.BusinessName = v.BusinessName
		user.PhoneNumber = v.PhoneNumber
		user.TelegramChatID = v.TelegramChatID
		user.Role = models.RoleVendor
		user.Verified = v.Approved
		user.RegistrationStatus = models.RegistrationPending
		if v.Approved {
			user.RegistrationStatus = models.RegistrationApproved
		}
		if err := store.UpsertUser(ctx, user); err != nil {
			return res, fmt.Errorf("upsert vendor %s: %w", v.UID, err)
		}
		names[v.UID] = v.BusinessName
		res.Vendors++
	}

	start := calendar.Midnight(from)
	for i := range c.Products {
		listing := c.Products[i]
		product := listing.Product
		if product.VendorName == "" {
			product.VendorName = names[product.VendorID]
		}
		if err := store.UpsertProduct(ctx, &product); err != nil {
			return res, fmt.Errorf("upsert product %s: %w", product.ID, err)
		}
		res.Products++

		if listing.OpenDays == 0 {
			continue
		}
		days, err := calendar.Expand(start, start.AddDate(0, 0, listing.OpenDays-1))
		if err != nil {
			return res, err
		}
		slots, err := store.GetSlots(ctx, product.ID, days)
		if err != nil {
			return res, fmt.Errorf("get slots for %s: %w", product.ID, err)
		}
		for _, d := range days {
			if _, ok := slots[d]; ok {
				continue
			}
			if err := store.SetSlotAvailability(ctx, product.ID, d, true); err != nil {
				return res, fmt.Errorf("open %s on %s: %w", product.ID, d, err)
			}
			res.DaysOpened++
		}
	}
	return res, nil
}
