package api

import (
	"io"
	"net/http"
	"strings"

	"renthaus/internal/domain"
	"renthaus/internal/logging"
	"renthaus/internal/paystack"

	"github.com/shopspring/decimal"
)

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID string           `json:"orderId"`
		Amount  *decimal.Decimal `json:"amount"`
		Email   string           `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	session, err := s.deps.Payments.Initiate(r.Context(), domain.InitiatePaymentRequest{
		OrderID: body.OrderID,
		Email:   body.Email,
		Amount:  decimalString(body.Amount),
	})
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"authorizationUrl": session.AuthorizationURL,
		"accessCode":       session.AccessCode,
		"reference":        session.Reference,
	})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		writeError(w, http.StatusBadRequest, "Reference is required")
		return
	}

	result, err := s.deps.Payments.Verify(r.Context(), reference)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": result.OrderID,
		"applied": result.Applied,
		"data":    result.Transaction,
	})
}

// handleWebhook applies charge.success events. Rejections that a redelivery
// cannot fix are acknowledged with 200.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context(), s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !paystack.ValidSignature(s.deps.WebhookSecret, body, r.Header.Get(paystack.SignatureHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := paystack.ParseWebhook(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if event.Event != paystack.EventChargeSuccess || event.Data.Reference == "" {
		logger.Debug().Str("event", event.Event).Msg("Ignoring webhook event")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	result, err := s.deps.Payments.Verify(r.Context(), event.Data.Reference)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			writeDomainError(w, r, s.logger, err)
			return
		}
		logger.Warn().Err(err).Str("reference", event.Data.Reference).Msg("Webhook payment not applied")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	logger.Info().
		Str("order_id", result.OrderID).
		Bool("applied", result.Applied).
		Msg("Webhook payment verified")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
