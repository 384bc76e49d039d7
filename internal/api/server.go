// Package api exposes the HTTP surface and the gRPC health service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"renthaus/internal/config"
	"renthaus/internal/domain"
	"renthaus/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Orders        domain.OrderService
	Payments      domain.PaymentService
	Notifications domain.NotificationService
	Availability  *service.AvailabilityService
	Vendors       *service.VendorService
	Reports       *service.ReportService
	Verifier      domain.IdentityVerifier
	// Guard enforces the per-customer order creation limit. Optional.
	Guard domain.GuardRepository
	// WebhookSecret is the Paystack secret used to sign webhooks.
	WebhookSecret string
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

type Server struct {
	cfg      config.APIConfig
	deps     Deps
	verifier domain.IdentityVerifier
	router   *mux.Router
	server   *http.Server
	logger   *zerolog.Logger
}

func NewServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		verifier: deps.Verifier,
		logger:   logger,
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestMiddleware(s.logger), recoverMiddleware(s.logger), newClientLimiter(s.cfg.RateLimit).middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/orders/create", s.authenticated(s.handleCreateOrder)).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.authenticated(s.handleListOrders)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.authenticated(s.handleGetOrder)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", s.authenticated(s.handleChangeStatus)).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/damage-claim", s.authenticated(s.handleFileClaim)).Methods(http.MethodPost)

	api.HandleFunc("/payment/paystack", s.handleInitiatePayment).Methods(http.MethodPost)
	api.HandleFunc("/payment/paystack", s.handleVerifyPayment).Methods(http.MethodGet)
	api.HandleFunc("/payment/paystack/webhook", s.handleWebhook).Methods(http.MethodPost)

	api.HandleFunc("/products/{id}/availability", s.handleProductAvailability).Methods(http.MethodGet)

	api.HandleFunc("/vendor/inventory", s.authenticated(s.handleVendorCalendar)).Methods(http.MethodGet)
	api.HandleFunc("/vendor/inventory", s.authenticated(s.handleSetAvailability)).Methods(http.MethodPut)
	api.HandleFunc("/vendor/inventory/open", s.authenticated(s.handleOpenRange)).Methods(http.MethodPost)
	api.HandleFunc("/vendor/payouts", s.authenticated(s.handlePayouts)).Methods(http.MethodGet)
	api.HandleFunc("/vendor/products", s.authenticated(s.handleListListings)).Methods(http.MethodGet)
	api.HandleFunc("/vendor/products", s.authenticated(s.handleCreateListing)).Methods(http.MethodPost)
	api.HandleFunc("/vendor/products/{id}", s.authenticated(s.handleUpdateListing)).Methods(http.MethodPut)
	api.HandleFunc("/vendor/products/{id}/availability", s.authenticated(s.handleListingAvailable)).Methods(http.MethodPost)

	api.HandleFunc("/admin/vendors", s.authenticated(adminOnly(s.handleListVendors))).Methods(http.MethodGet)
	api.HandleFunc("/admin/vendors/approve-pending", s.authenticated(adminOnly(s.handleApprovePending))).Methods(http.MethodPost)
	api.HandleFunc("/admin/vendors/{uid}/approval", s.authenticated(s.handleVendorApproval)).Methods(http.MethodPost)
	api.HandleFunc("/admin/products/availability", s.authenticated(adminOnly(s.handleBulkListingAvailable))).Methods(http.MethodPost)
	api.HandleFunc("/admin/transactions", s.authenticated(adminOnly(s.handleTransactions))).Methods(http.MethodGet)
	api.HandleFunc("/admin/deposits", s.authenticated(adminOnly(s.handleDeposits))).Methods(http.MethodGet)
	api.HandleFunc("/admin/orders/{id}/damage-claim/resolve", s.authenticated(s.handleResolveClaim)).Methods(http.MethodPost)

	api.HandleFunc("/notifications/email", s.authenticated(s.handleEnqueueNotification)).Methods(http.MethodPost)

	return r
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
