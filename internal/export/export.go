// Package export renders order reports as CSV, JSON or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	sheetName      = "Transactions"
	maxColumnWidth = 60
)

// ParseFormat accepts json, csv or xlsx. An empty value means json.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV, FormatXLSX:
		return Format(raw), nil
	}
	return "", domain.Invalid("unsupported export format %q", raw)
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Row is one order flattened for export. Money is fixed to two decimals.
type Row struct {
	OrderID        string `json:"orderId"`
	CreatedAt      string `json:"createdAt"`
	ProductTitle   string `json:"productTitle"`
	CustomerID     string `json:"customerId"`
	VendorID       string `json:"vendorId"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	RentalDays     int    `json:"rentalDays"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"paymentStatus"`
	TotalAmount    string `json:"totalAmount"`
	Commission     string `json:"commission"`
	VendorEarnings string `json:"vendorEarnings"`
	ClaimStatus    string `json:"claimStatus,omitempty"`
	RefundAmount   string `json:"refundAmount,omitempty"`
}

var header = []string{
	"Order ID", "Created At", "Product", "Customer", "Vendor", "Start Date", "End Date", "Days",
	"Status", "Payment Status", "Total", "Commission", "Vendor Earnings", "Claim Status", "Refund",
}

func Rows(orders []*models.Order) []Row {
	rows := make([]Row, 0, len(orders))
	for _, o := range orders {
		row := Row{
			OrderID:        o.ID,
			CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
			ProductTitle:   o.ProductTitle,
			CustomerID:     o.CustomerID,
			VendorID:       o.VendorID,
			StartDate:      o.StartDate,
			EndDate:        o.EndDate,
			RentalDays:     o.RentalDays,
			Status:         o.Status,
			PaymentStatus:  o.PaymentStatus,
			TotalAmount:    o.TotalAmount.StringFixed(2),
			Commission:     o.Commission.StringFixed(2),
			VendorEarnings: o.VendorEarnings().StringFixed(2),
		}
		if c := o.DamageClaim; c != nil {
			row.ClaimStatus = c.Status
			if c.Status != models.ClaimPending {
				row.RefundAmount = c.RefundAmount.StringFixed(2)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (r Row) values() []string {
	return []string{
		r.OrderID, r.CreatedAt, r.ProductTitle, r.CustomerID, r.VendorID, r.StartDate, r.EndDate,
		fmt.Sprint(r.RentalDays), r.Status, r.PaymentStatus, r.TotalAmount, r.Commission,
		r.VendorEarnings, r.ClaimStatus, r.RefundAmount,
	}
}

func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return WriteJSON(w, rows)
	}
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode json export: %w", err)
	}
	return nil
}

// WriteXLSX writes a single sheet with a bold header row and columns sized
// to their longest value.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	widths := make([]int, len(header))
	writeRow := func(rowNum int, values []string) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
		return nil
	}

	if err := writeRow(1, header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	for i, r := range rows {
		if err := writeRow(i+2, r.values()); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetCellStyle(sheetName, "A1", lastCol+"1", style)

	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, col, col, float64(min(width+2, maxColumnWidth)))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error saving workbook: %w", err)
	}
	return nil
}

// WriteFile stores rows under dir as <prefix>.<format> and returns the path.
func WriteFile(dir, prefix string, format Format, rows []Row) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, prefix+"."+string(format))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating export file: %w", err)
	}
	if err := Write(file, format, rows); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("error closing export file: %w", err)
	}
	return path, nil
}
