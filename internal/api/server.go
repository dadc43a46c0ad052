// Package api exposes the coordinator and ledger over HTTP. Caller
// identity comes from the X-Caller-Address header, set by the upstream
// gateway after wallet verification.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"patridefi/internal/coordinator"
	"patridefi/internal/domain"
	"patridefi/internal/ledger"
	"patridefi/internal/observability"
	"patridefi/internal/oracle"
	"patridefi/internal/storage"
	"patridefi/internal/valuation"
)

// Server wires HTTP routes to the core components. The mirror stores
// back the listing routes; they lag the core by at most one indexer
// flush.
type Server struct {
	coord     *coordinator.Coordinator
	ledger    *ledger.Ledger
	customers storage.CustomerMirrorStore
	tokens    storage.TokenMirrorStore
	logger    *log.Logger
	metrics   *observability.Metrics
}

// Options contains configuration for creating a Server.
type Options struct {
	Coordinator *coordinator.Coordinator
	Ledger      *ledger.Ledger
	Customers   storage.CustomerMirrorStore // optional, serves listings
	Tokens      storage.TokenMirrorStore    // optional, serves listings
	Logger      *log.Logger
	Metrics     *observability.Metrics // optional
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		coord:     opts.Coordinator,
		ledger:    opts.Ledger,
		customers: opts.Customers,
		tokens:    opts.Tokens,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Routes returns the HTTP handler with all routes registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/mint", s.instrument("/v1/mint", s.handleMint))
	mux.HandleFunc("POST /v1/customers/{wallet}/data-hash", s.instrument("/v1/customers/{wallet}/data-hash", s.handleUpdateDataHash))
	mux.HandleFunc("GET /v1/customers", s.instrument("/v1/customers", s.handleListCustomers))
	mux.HandleFunc("GET /v1/customers/{wallet}", s.instrument("/v1/customers/{wallet}", s.handleGetCustomer))
	mux.HandleFunc("GET /v1/customers/{wallet}/tokens", s.instrument("/v1/customers/{wallet}/tokens", s.handleGetCustomerTokens))
	mux.HandleFunc("GET /v1/customers/{wallet}/total-piece-value", s.instrument("/v1/customers/{wallet}/total-piece-value", s.handleGetTotalPieceValue))
	mux.HandleFunc("GET /v1/admins", s.instrument("/v1/admins", s.handleGetAdmins))
	mux.HandleFunc("POST /v1/admins", s.instrument("/v1/admins", s.handleAddAdmin))
	mux.HandleFunc("DELETE /v1/admins/{address}", s.instrument("/v1/admins/{address}", s.handleRemoveAdmin))
	mux.HandleFunc("POST /v1/pause", s.instrument("/v1/pause", s.handlePause))
	mux.HandleFunc("POST /v1/unpause", s.instrument("/v1/unpause", s.handleUnpause))
	mux.HandleFunc("GET /v1/tokens/{id}", s.instrument("/v1/tokens/{id}", s.handleGetToken))
	mux.HandleFunc("GET /metadata/{id}", s.instrument("/metadata/{id}", s.handleMetadata))

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument stamps a request id, logs the call, and records duration.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		s.logger.Printf("%s %s %d %v request_id=%s", r.Method, r.URL.Path, rec.status, elapsed, requestID)
		if s.metrics != nil {
			s.metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		}
	}
}

// MintRequest is the JSON body for POST /v1/mint. Quality values outside
// the known grades fail at decode time.
type MintRequest struct {
	Wallet     domain.Address   `json:"wallet"`
	SupabaseID domain.Hash      `json:"supabaseId"`
	DataHash   domain.Hash      `json:"dataHash"`
	WeightsMg  []uint64         `json:"weightsMg"`
	Qualities  []domain.Quality `json:"qualities"`
}

// MintResponse reports the result of a mint batch.
type MintResponse struct {
	LastTokenID     uint64 `json:"lastTokenId"`
	TotalPieceValue string `json:"totalPieceValue"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	lastTokenID, err := s.coord.RegisterCustomerAndMintDetailed(r.Context(), caller, req.Wallet, req.SupabaseID, req.DataHash, req.WeightsMg, req.Qualities)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MintErrors.WithLabelValues(errorReason(err)).Inc()
		}
		s.writeCoordinatorError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.MintBatches.Inc()
		s.metrics.PiecesMinted.Add(float64(len(req.WeightsMg)))
		s.metrics.BatchSize.Observe(float64(len(req.WeightsMg)))
		s.metrics.LastGoldPrice.Set(float64(s.ledger.GoldToken(lastTokenID).GoldPrice))
	}

	s.writeJSON(w, http.StatusOK, MintResponse{
		LastTokenID:     lastTokenID,
		TotalPieceValue: s.coord.TotalPieceValue(req.Wallet).Dec(),
	})
}

// UpdateDataHashRequest is the JSON body for the data-hash update route.
type UpdateDataHashRequest struct {
	DataHash domain.Hash `json:"dataHash"`
}

func (s *Server) handleUpdateDataHash(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	wallet, ok := s.pathAddress(w, r, "wallet")
	if !ok {
		return
	}

	var req UpdateDataHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.coord.UpdateCustomerDataHash(r.Context(), caller, wallet, req.DataHash); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CustomerResponse is the JSON view of a customer record.
type CustomerResponse struct {
	Wallet          domain.Address `json:"wallet"`
	SupabaseID      domain.Hash    `json:"supabaseId"`
	DataHash        domain.Hash    `json:"dataHash"`
	TotalPieceValue string         `json:"totalPieceValue"`
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.pathAddress(w, r, "wallet")
	if !ok {
		return
	}

	c := s.coord.Customer(wallet)
	if c == nil || !c.Exists {
		s.writeError(w, http.StatusNotFound, "customer not found")
		return
	}

	s.writeJSON(w, http.StatusOK, CustomerResponse{
		Wallet:          c.Wallet,
		SupabaseID:      c.SupabaseID,
		DataHash:        c.DataHash,
		TotalPieceValue: c.TotalPieceValue.Dec(),
	})
}

func (s *Server) handleGetTotalPieceValue(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.pathAddress(w, r, "wallet")
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"totalPieceValue": s.coord.TotalPieceValue(wallet).Dec(),
	})
}

// CustomerListEntry is one row of the mirror-backed customer listing.
type CustomerListEntry struct {
	Wallet          string `json:"wallet"`
	SupabaseID      string `json:"supabaseId"`
	DataHash        string `json:"dataHash"`
	TotalPieceValue string `json:"totalPieceValue"`
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	if s.customers == nil {
		s.writeError(w, http.StatusServiceUnavailable, "customer mirror not configured")
		return
	}

	rows, err := s.customers.List(r.Context())
	if err != nil {
		s.logger.Printf("list customer mirror: %v", err)
		s.writeError(w, http.StatusInternalServerError, "list customers")
		return
	}

	out := make([]CustomerListEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, CustomerListEntry{
			Wallet:          row.Wallet,
			SupabaseID:      row.SupabaseID,
			DataHash:        row.DataHash,
			TotalPieceValue: row.TotalPieceValue,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"customers": out})
}

// MirrorTokenResponse is one token row of a customer's holdings.
type MirrorTokenResponse struct {
	TokenID    uint64 `json:"tokenId"`
	SupabaseID string `json:"supabaseId"`
	GoldPrice  int64  `json:"goldPrice"`
	Quality    string `json:"quality"`
	PieceValue uint64 `json:"pieceValue"`
	MintedAt   int64  `json:"mintedAt"`
}

func (s *Server) handleGetCustomerTokens(w http.ResponseWriter, r *http.Request) {
	if s.customers == nil || s.tokens == nil {
		s.writeError(w, http.StatusServiceUnavailable, "token mirror not configured")
		return
	}
	wallet, ok := s.pathAddress(w, r, "wallet")
	if !ok {
		return
	}

	row, err := s.customers.GetByWallet(r.Context(), wallet.String())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.logger.Printf("load customer mirror: %v", err)
		s.writeError(w, http.StatusInternalServerError, "load customer")
		return
	}

	toks, err := s.tokens.GetBySupabaseID(r.Context(), row.SupabaseID)
	if err != nil {
		s.logger.Printf("load token mirror: %v", err)
		s.writeError(w, http.StatusInternalServerError, "load tokens")
		return
	}

	out := make([]MirrorTokenResponse, 0, len(toks))
	for _, tok := range toks {
		out = append(out, MirrorTokenResponse{
			TokenID:    tok.TokenID,
			SupabaseID: tok.SupabaseID,
			GoldPrice:  tok.GoldPrice,
			Quality:    domain.Quality(tok.Quality).String(),
			PieceValue: tok.PieceValue,
			MintedAt:   tok.MintedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func (s *Server) handleGetAdmins(w http.ResponseWriter, r *http.Request) {
	admins := s.coord.Admins()
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		out = append(out, a.String())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"admins": out})
}

// AdminRequest is the JSON body for POST /v1/admins.
type AdminRequest struct {
	Address domain.Address `json:"address"`
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.coord.AddAdmin(caller, req.Address); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	admin, ok := s.pathAddress(w, r, "address")
	if !ok {
		return
	}

	if err := s.coord.RemoveAdmin(caller, admin); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.coord.Pause(caller); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.coord.Unpause(caller); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TokenResponse is the JSON view of a minted token record.
type TokenResponse struct {
	TokenID    uint64      `json:"tokenId"`
	SupabaseID domain.Hash `json:"supabaseId"`
	Amount     uint64      `json:"amount"`
	GoldPrice  int64       `json:"goldPrice"`
	Quality    string      `json:"quality"`
	PieceValue uint64      `json:"pieceValue"`
	URI        string      `json:"uri"`
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	record := s.ledger.GoldToken(id)
	if record.IsZero() {
		s.writeError(w, http.StatusNotFound, "token not found")
		return
	}

	s.writeJSON(w, http.StatusOK, TokenResponse{
		TokenID:    record.TokenID,
		SupabaseID: record.SupabaseID,
		Amount:     record.Amount,
		GoldPrice:  record.GoldPrice,
		Quality:    record.Quality.String(),
		PieceValue: record.PieceValue,
		URI:        s.ledger.URI(record.TokenID),
	})
}

// metadataResponse follows the token metadata layout the web frontend
// consumes. Numeric fields come verbatim from the minted record.
type metadataResponse struct {
	Name       string              `json:"name"`
	Image      string              `json:"image"`
	Attributes []metadataAttribute `json:"attributes"`
}

type metadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("id"), ".json")
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseUint(name, 10, 64)
	if err != nil || id == 0 {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	record := s.ledger.GoldToken(id)
	if record.IsZero() {
		s.writeError(w, http.StatusNotFound, "token not found")
		return
	}

	s.writeJSON(w, http.StatusOK, metadataResponse{
		Name:  "Gold Piece #" + strconv.FormatUint(record.TokenID, 10),
		Image: s.ledger.URI(record.TokenID),
		Attributes: []metadataAttribute{
			{TraitType: "Quality", Value: record.Quality.String()},
			{TraitType: "Gold Price", Value: record.GoldPrice},
			{TraitType: "Piece Value", Value: record.PieceValue},
			{TraitType: "Amount", Value: record.Amount},
		},
	})
}

// caller extracts and validates the X-Caller-Address header.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	raw := r.Header.Get("X-Caller-Address")
	if raw == "" {
		s.writeError(w, http.StatusUnauthorized, "missing X-Caller-Address header")
		return domain.Address{}, false
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid X-Caller-Address header")
		return domain.Address{}, false
	}
	return addr, true
}

func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request, key string) (domain.Address, bool) {
	addr, err := domain.ParseAddress(r.PathValue(key))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid address")
		return domain.Address{}, false
	}
	return addr, true
}

// errorReason labels rejected mints for the error counter.
func errorReason(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrNotAdmin):
		return "not_admin"
	case errors.Is(err, coordinator.ErrPaused):
		return "paused"
	case errors.Is(err, coordinator.ErrBatchTooLarge):
		return "batch_too_large"
	case errors.Is(err, coordinator.ErrArrayMismatch):
		return "array_mismatch"
	case errors.Is(err, coordinator.ErrEmptyBatch):
		return "empty_batch"
	case errors.Is(err, valuation.ErrWeightTooLarge), errors.Is(err, valuation.ErrInvalidWeight):
		return "invalid_weight"
	case errors.Is(err, oracle.ErrInvalidGoldPrice), errors.Is(err, oracle.ErrStalePrice):
		return "invalid_price"
	default:
		return "other"
	}
}

// writeCoordinatorError maps core sentinel errors to HTTP statuses.
func (s *Server) writeCoordinatorError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, coordinator.ErrNotAdmin),
		errors.Is(err, coordinator.ErrNotOwner),
		errors.Is(err, ledger.ErrNotMinter),
		errors.Is(err, ledger.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, coordinator.ErrCustomerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, coordinator.ErrPaused),
		errors.Is(err, coordinator.ErrNotPaused):
		status = http.StatusConflict
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}
