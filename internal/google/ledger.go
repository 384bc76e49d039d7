// Package google mirrors paid orders into the admin finance spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"renthaus/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultLedgerSheet = "Ledger"

var errRowNotFound = errors.New("ledger row not found")

var ledgerHeader = []interface{}{
	"Order ID", "Created At", "Paid At", "Customer", "Vendor", "Product",
	"Start", "End", "Status", "Payment", "Total", "Commission", "Vendor Earnings",
}

// LedgerService keeps one row per order, keyed by the order id in column A.
type LedgerService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewLedgerService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*LedgerService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newLedgerService(srv, spreadsheetID, sheetName), nil
}

func newLedgerService(srv *sheets.Service, spreadsheetID, sheetName string) *LedgerService {
	if sheetName == "" {
		sheetName = defaultLedgerSheet
	}
	return &LedgerService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
	}
}

// TestConnection reads the header cell of the ledger sheet.
func (s *LedgerService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1.
func (s *LedgerService) EnsureHeader(ctx context.Context) error {
	rangeData := fmt.Sprintf("%s!A1:M1", s.sheetName)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache indexes the order ids already present in column A.
func (s *LedgerService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if id := cellString(row); id != "" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendOrder writes the order's row, updating it in place when the order is
// already on the ledger. Redelivered tasks therefore never duplicate rows.
func (s *LedgerService) AppendOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is nil")
	}

	rowIdx, err := s.FindOrderRow(ctx, order.ID)
	if errors.Is(err, errRowNotFound) {
		return s.appendRow(ctx, order)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:M%d", s.sheetName, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{orderRowValues(order)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *LedgerService) appendRow(ctx context.Context, order *models.Order) error {
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{orderRowValues(order)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err == nil {
		// The row number is unknown until the next lookup.
		s.deleteCachedRow(order.ID)
	}
	return err
}

// FindOrderRow locates the 1-based row of orderID in column A.
func (s *LedgerService) FindOrderRow(ctx context.Context, orderID string) (int, error) {
	if orderID == "" {
		return 0, fmt.Errorf("order id is required")
	}
	if row, ok := s.getCachedRow(orderID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellString(row) == orderID {
			s.setCachedRow(orderID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

func (s *LedgerService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *LedgerService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *LedgerService) deleteCachedRow(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache clears the row index cache.
func (s *LedgerService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	if v, ok := row[0].(string); ok {
		return v
	}
	return fmt.Sprint(row[0])
}

func orderRowValues(o *models.Order) []interface{} {
	paidAt := ""
	if o.PaidAt != nil {
		paidAt = o.PaidAt.UTC().Format(time.DateTime)
	}
	return []interface{}{
		o.ID,
		o.CreatedAt.UTC().Format(time.DateTime),
		paidAt,
		o.CustomerEmail,
		o.VendorID,
		o.ProductTitle,
		o.StartDate,
		o.EndDate,
		o.Status,
		o.PaymentStatus,
		o.TotalAmount.StringFixed(2),
		o.Commission.StringFixed(2),
		o.VendorEarnings().StringFixed(2),
	}
}
