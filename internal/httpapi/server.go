// Package httpapi exposes the submission contract and read-only account
// views over a thin gorilla/mux + rs/cors transport, the same router/CORS
// pairing the reference API server uses.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/coreexec/marginsim/internal/accounting"
	"github.com/coreexec/marginsim/internal/config"
	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/store"
	"github.com/coreexec/marginsim/internal/submission"
)

// Server wires the submission service and store onto an HTTP router.
type Server struct {
	store      *store.Store
	prices     *pricecache.Cache
	submission *submission.Service
	router     *mux.Router
	cfg        *config.Config
}

// NewServer constructs a Server with its routes registered.
func NewServer(st *store.Store, prices *pricecache.Cache, sub *submission.Service, cfg *config.Config) *Server {
	s := &Server{
		store:      st,
		prices:     prices,
		submission: sub,
		router:     mux.NewRouter(),
		cfg:        cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	s.router.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")
	s.router.HandleFunc("/accounts/{id}/equity-history", s.handleEquityHistory).Methods("GET")
	s.router.HandleFunc("/accounts/{id}/position-history", s.handlePositionHistory).Methods("GET")
	s.router.HandleFunc("/accounts/{id}/daily-pnl", s.handleDailyPnL).Methods("GET")
	s.router.HandleFunc("/accounts/{id}/statistics", s.handleStatistics).Methods("GET")
	s.router.HandleFunc("/accounts/{id}/orders", s.handleListOrders).Methods("GET")

	s.router.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	s.router.HandleFunc("/orders/{id}", s.handleAmendOrder).Methods("PATCH")
	s.router.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods("DELETE")

	s.router.HandleFunc("/positions/{id}", s.handleUpdatePosition).Methods("PATCH")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Use(requestIDMiddleware)
}

// requestIDMiddleware tags every request with a unique id for correlating
// log lines, the same way a request moving through the matching engine is
// traced by its order id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Start blocks serving addr with CORS applied to every route, mirroring the
// reference server's localhost-dev CORS policy.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	log.Info().Str("addr", addr).Msg("http api starting")
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	initialBalance := req.InitialBalance
	if initialBalance.IsZero() {
		initialBalance = s.cfg.DefaultInitialBalance
	}
	leverage := req.Leverage
	if leverage == 0 {
		leverage = s.cfg.DefaultLeverage
	}

	account, err := s.store.CreateAccount(req.UserID, initialBalance, leverage)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create account", err.Error())
		return
	}
	respondJSONStatus(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	account, err := s.store.GetAccount(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "account not found", err.Error())
		return
	}

	positions, err := s.store.ListPositions(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load positions", err.Error())
		return
	}

	metrics := accounting.Evaluate(*account, positions, s.prices.Snapshot())
	respondJSON(w, AccountSummary{
		Account:            *account,
		Positions:          positions,
		Equity:             metrics.Equity,
		TotalMargin:        metrics.TotalMargin,
		TotalUnrealizedPnL: metrics.TotalUnrealizedPnL,
	})
}

func (s *Server) handleEquityHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	rows, err := s.store.ListEquityHistory(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load equity history", err.Error())
		return
	}
	respondJSON(w, rows)
}

func (s *Server) handlePositionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	rows, err := s.store.ListPositionHistory(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load position history", err.Error())
		return
	}
	respondJSON(w, rows)
}

func (s *Server) handleDailyPnL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	rows, err := s.store.ListPositionHistory(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load position history", err.Error())
		return
	}
	respondJSON(w, dailyPnLFromHistory(rows))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	rows, err := s.store.ListPositionHistory(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load position history", err.Error())
		return
	}
	respondJSON(w, statisticsFromHistory(rows))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	orders, err := s.store.ListOrders(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load orders", err.Error())
		return
	}
	respondJSON(w, orders)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.submission.CreateOrder(submission.CreateOrderParams{
		AccountID:       req.AccountID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		OrderType:       req.OrderType,
		Quantity:        req.Quantity,
		LimitPrice:      req.LimitPrice,
		Leverage:        req.Leverage,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to create order", err.Error())
		return
	}
	respondJSONStatus(w, http.StatusCreated, order)
}

func (s *Server) handleAmendOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	var req AmendOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.submission.AmendOrder(id, submission.AmendOrderParams{
		LimitPrice:      req.LimitPrice,
		Quantity:        req.Quantity,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
	}); err != nil {
		respondError(w, http.StatusBadRequest, "failed to amend order", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "amended"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	if err := s.submission.CancelOrder(id); err != nil {
		respondError(w, http.StatusBadRequest, "failed to cancel order", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "canceled"})
}

func (s *Server) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.submission.UpdatePositionTPSL(id, req.TakeProfitPrice, req.StopLossPrice); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update position", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "updated"})
}

func pathUint(w http.ResponseWriter, r *http.Request, key string) (uint, bool) {
	raw := mux.Vars(r)[key]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id", err.Error())
		return 0, false
	}
	return uint(id), true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("httpapi: failed to encode response")
	}
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("httpapi: failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
