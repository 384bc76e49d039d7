package api

import (
	"fmt"
	"net/http"
	"strings"

	"renthaus/internal/domain"
	"renthaus/internal/export"
	"renthaus/internal/models"
	"renthaus/internal/service"

	"github.com/gorilla/mux"
)

func requireQuery(r *http.Request, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v := strings.TrimSpace(r.URL.Query().Get(name))
		if v == "" {
			return nil, domain.Invalid("%s is required", name)
		}
		values[name] = v
	}
	return values, nil
}

func (s *Server) handleProductAvailability(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "start", "end")
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	productID := mux.Vars(r)["id"]

	dr, err := s.deps.Availability.ResolveRange(q["start"], q["end"], true)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	days, err := s.deps.Availability.Calendar(r.Context(), productID, dr.Days)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	available := true
	for _, d := range days {
		if d.State != models.DayAvailable {
			available = false
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId": productID,
		"available": available,
		"days":      days,
	})
}

func (s *Server) handleVendorCalendar(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "productId", "start", "end")
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	days, err := s.deps.Vendors.Calendar(r.Context(), identityFrom(r.Context()), q["productId"], q["start"], q["end"])
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": q["productId"], "days": days})
}

func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
		Date      string `json:"date"`
		Available *bool  `json:"available"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	if body.Available == nil {
		writeError(w, http.StatusBadRequest, "available is required")
		return
	}

	err := s.deps.Vendors.SetAvailability(r.Context(), identityFrom(r.Context()), body.ProductID, body.Date, *body.Available)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId": body.ProductID,
		"date":      body.Date,
		"available": *body.Available,
	})
}

func (s *Server) handleOpenRange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	opened, err := s.deps.Vendors.OpenRange(r.Context(), identityFrom(r.Context()), body.ProductID, body.StartDate, body.EndDate)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": body.ProductID, "opened": opened})
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Vendors.Listings(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var in service.ListingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	product, err := s.deps.Vendors.CreateListing(r.Context(), identityFrom(r.Context()), in)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	var in service.ListingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	product, err := s.deps.Vendors.UpdateListing(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleListingAvailable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Available *bool `json:"available"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	if body.Available == nil {
		writeError(w, http.StatusBadRequest, "available is required")
		return
	}
	product, err := s.deps.Vendors.SetListingAvailable(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], *body.Available)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleBulkListingAvailable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Available *bool `json:"available"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	if body.Available == nil {
		writeError(w, http.StatusBadRequest, "available is required")
		return
	}
	changed, err := s.deps.Vendors.SetAllListingsAvailable(r.Context(), identityFrom(r.Context()), *body.Available)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": *body.Available, "updated": changed})
}

func (s *Server) handleApprovePending(w http.ResponseWriter, r *http.Request) {
	approved, err := s.deps.Vendors.ApprovePending(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approved": len(approved), "vendors": approved})
}

func (s *Server) handlePayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.deps.Vendors.Payouts(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payouts)
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.deps.Vendors.ListVendors(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (s *Server) handleVendorApproval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approved *bool `json:"approved"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	if body.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved is required")
		return
	}

	user, err := s.deps.Vendors.SetApproval(r.Context(), identityFrom(r.Context()), mux.Vars(r)["uid"], *body.Approved)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleTransactions serves the report as JSON, or the order rows as a CSV or
// XLSX download.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	from, to, err := s.deps.Reports.Window(q.Get("from"), q.Get("to"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	report, err := s.deps.Reports.Transactions(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	if format == export.FormatJSON {
		writeJSON(w, http.StatusOK, report)
		return
	}

	filename := fmt.Sprintf("transactions_%s_%s.%s",
		from.Format(models.DateLayout), to.AddDate(0, 0, -1).Format(models.DateLayout), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.Write(w, format, export.Rows(report.Orders)); err != nil {
		s.logger.Error().Err(err).Str("format", string(format)).Msg("Failed to write export")
	}
}

func (s *Server) handleDeposits(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Reports.Deposits(r.Context())
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleEnqueueNotification(w http.ResponseWriter, r *http.Request) {
	var payload models.NotificationPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	task, err := s.deps.Notifications.Enqueue(r.Context(), identityFrom(r.Context()), payload)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "taskId": task.ID})
}
