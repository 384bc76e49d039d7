package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const (
	idempotencyHeader = "Idempotency-Key"
	orderRateWindow   = time.Minute
)

// addOnRef accepts either a service id or an add-on object.
type addOnRef string

func (a *addOnRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*a = addOnRef(id)
		return nil
	}
	var obj struct {
		ServiceID string `json:"serviceId"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.ServiceID != "" {
		*a = addOnRef(obj.ServiceID)
	} else {
		*a = addOnRef(obj.ID)
	}
	return nil
}

type createOrderBody struct {
	ProductID            string           `json:"productId"`
	StartDate            string           `json:"startDate"`
	EndDate              string           `json:"endDate"`
	AddOnServices        []addOnRef       `json:"addOnServices"`
	DeliveryAddress      string           `json:"deliveryAddress"`
	DeliveryInstructions string           `json:"deliveryInstructions"`
	IdempotencyKey       string           `json:"idempotencyKey"`
	RentalFee            *decimal.Decimal `json:"rentalFee"`
	SecurityDeposit      *decimal.Decimal `json:"securityDeposit"`
	TotalAmount          *decimal.Decimal `json:"totalAmount"`
	Commission           *decimal.Decimal `json:"commission"`
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())

	var body createOrderBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	if err := s.checkOrderRate(r, caller); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		key = body.IdempotencyKey
	}
	addOns := make([]string, 0, len(body.AddOnServices))
	for _, a := range body.AddOnServices {
		addOns = append(addOns, string(a))
	}

	order, err := s.deps.Orders.CreateOrder(r.Context(), domain.CreateOrderRequest{
		Customer:              caller,
		IdempotencyKey:        key,
		ProductID:             body.ProductID,
		StartDate:             body.StartDate,
		EndDate:               body.EndDate,
		AddOnServiceIDs:       addOns,
		DeliveryAddress:       body.DeliveryAddress,
		DeliveryInstructions:  body.DeliveryInstructions,
		ClientRentalFee:       decimalString(body.RentalFee),
		ClientSecurityDeposit: decimalString(body.SecurityDeposit),
		ClientTotalAmount:     decimalString(body.TotalAmount),
		ClientCommission:      decimalString(body.Commission),
	})
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"orderId":     order.ID,
		"totalAmount": order.TotalAmount,
		"commission":  order.Commission,
	})
}

// checkOrderRate applies the per-customer creation limit. Guard failures
// let the request through.
func (s *Server) checkOrderRate(r *http.Request, caller *models.Identity) error {
	limit := s.cfg.RateLimit.OrdersPerMinute
	if s.deps.Guard == nil || limit <= 0 {
		return nil
	}
	allowed, err := s.deps.Guard.CheckRateLimit(r.Context(), "ratelimit:orders:"+caller.UID, limit, orderRateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("uid", caller.UID).Msg("Order rate limit check failed")
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Orders.ListOrders(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.deps.Orders.GetOrder(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	order, err := s.deps.Orders.ChangeStatus(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], body.Status)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": order.ID, "status": order.Status})
}

func (s *Server) handleFileClaim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Images      []string        `json:"images"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	order, err := s.deps.Orders.FileDamageClaim(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], domain.DamageClaimRequest{
		Description: body.Description,
		Amount:      body.Amount.String(),
		Images:      body.Images,
	})
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"orderId": order.ID, "damageClaim": order.DamageClaim})
}

func (s *Server) handleResolveClaim(w http.ResponseWriter, r *http.Request) {
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

	order, err := s.deps.Orders.ResolveDamageClaim(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], *body.Approved)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orderId":       order.ID,
		"claimStatus":   order.DamageClaim.Status,
		"refundAmount":  order.DamageClaim.RefundAmount,
		"paymentStatus": order.PaymentStatus,
	})
}
