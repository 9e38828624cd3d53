package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/fracswap/fracswap/pkg/app/market"
	"github.com/fracswap/fracswap/pkg/app/token"
)

// Server exposes the listing registry and settlement engine over REST and
// fans listing events out over WebSocket. It is the registry's event sink.
type Server struct {
	reg      *market.Registry
	engine   *market.Engine
	bank     *token.Token
	bankAuth *token.Authority // faucet; nil outside devnet
	router   *mux.Router
	hub      *Hub
}

// NewServer wires the API over the marketplace components. bankAuth enables
// the devnet faucet; pass nil to disable it.
func NewServer(reg *market.Registry, engine *market.Engine, bank *token.Token, bankAuth *token.Authority) *Server {
	s := &Server{
		reg:      reg,
		engine:   engine,
		bank:     bank,
		bankAuth: bankAuth,
		router:   mux.NewRouter(),
		hub:      NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Listing lifecycle
	api.HandleFunc("/listings", s.handleCreateListing).Methods("POST")
	api.HandleFunc("/listings", s.handleGetListings).Methods("GET")
	api.HandleFunc("/listings/{id}", s.handleGetListing).Methods("GET")
	api.HandleFunc("/listings/{id}/execute", s.handleExecute).Methods("POST")
	api.HandleFunc("/listings/{id}/edit", s.handleEdit).Methods("POST")
	api.HandleFunc("/listings/{id}/transfer", s.handleTransfer).Methods("POST")
	api.HandleFunc("/listings/{id}/balances/{address}", s.handleGetFractionBalance).Methods("GET")

	// Payment currency
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the HTTP server. Blocks until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Publish implements market.Sink: every listing event goes to the firehose
// channel and the per-listing channel.
func (s *Server) Publish(ev market.Event) {
	s.hub.BroadcastToChannel("listings", ev)
	s.hub.BroadcastToChannel(fmt.Sprintf("listings:%d", ev.ListingID), ev)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Collection) || !common.IsHexAddress(req.Owner) || !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	id, err := s.reg.Create(market.CreateRequest{
		Collection:    common.HexToAddress(req.Collection),
		TokenID:       req.TokenID,
		Price:         req.Price,
		Signature:     common.FromHex(req.Signature),
		Deadline:      req.Deadline,
		Owner:         common.HexToAddress(req.Owner),
		FractionCount: req.FractionCount,
		FractionPrice: req.FractionPrice,
		Name:          req.Name,
		Symbol:        req.Symbol,
	}, common.HexToAddress(req.Caller))
	if err != nil {
		respondMarketError(w, err)
		return
	}

	log.Printf("[api] listing created: id=%d owner=%s", id, req.Caller)
	respondJSON(w, CreateListingResponse{ListingID: id})
}

func (s *Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	listings := s.reg.List()
	response := make([]ListingInfo, len(listings))
	for i, l := range listings {
		response[i] = toListingInfo(l)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}

	l, err := s.reg.Get(id)
	if err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, toListingInfo(l))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid caller address", "")
		return
	}

	if err := s.engine.Execute(id, req.Payment, common.HexToAddress(req.Caller)); err != nil {
		respondMarketError(w, err)
		return
	}

	log.Printf("[api] listing executed: id=%d buyer=%s payment=%s", id, req.Caller, req.Payment)
	respondJSON(w, map[string]string{"status": "settled"})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid caller address", "")
		return
	}

	if err := s.reg.Edit(id, req.Price, req.Active, common.HexToAddress(req.Caller)); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "edited"})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid caller address", "")
		return
	}

	var to common.Address
	if common.IsHexAddress(req.To) {
		to = common.HexToAddress(req.To)
	}
	// A malformed or missing recipient stays zero and the registry rejects
	// it with its own kind.

	if err := s.reg.TransferFraction(id, to, common.HexToAddress(req.Caller)); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "transferred"})
}

func (s *Server) handleGetFractionBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}

	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	tok, err := s.reg.FractionToken(id)
	if err != nil {
		respondMarketError(w, err)
		return
	}

	addr := common.HexToAddress(addressStr)
	respondJSON(w, BalanceResponse{
		Address: addr.Hex(),
		Symbol:  tok.Symbol(),
		Balance: tok.BalanceOf(addr),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	addr := common.HexToAddress(addressStr)
	respondJSON(w, BalanceResponse{
		Address: addr.Hex(),
		Symbol:  s.bank.Symbol(),
		Balance: s.bank.BalanceOf(addr),
	})
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if s.bankAuth == nil {
		respondError(w, http.StatusForbidden, "faucet disabled", "node is not running in devnet mode")
		return
	}

	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "amount must be positive", "")
		return
	}

	addr := common.HexToAddress(req.Address)
	if err := s.bankAuth.Mint(addr, req.Amount); err != nil {
		respondError(w, http.StatusInternalServerError, "faucet mint failed", err.Error())
		return
	}

	log.Printf("[api] faucet: %s credited %s %s", req.Address, req.Amount, s.bank.Symbol())
	respondJSON(w, BalanceResponse{
		Address: addr.Hex(),
		Symbol:  s.bank.Symbol(),
		Balance: s.bank.BalanceOf(addr),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func listingID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid listing id", err.Error())
		return 0, false
	}
	return id, true
}

func toListingInfo(l market.Listing) ListingInfo {
	return ListingInfo{
		ID:              l.ID,
		Collection:      l.Collection.Hex(),
		TokenID:         l.TokenID,
		Price:           l.Price,
		Deadline:        l.Deadline,
		Owner:           l.Owner.Hex(),
		Active:          l.Active,
		FractionTokenID: l.FractionTokenID,
		FractionCount:   l.FractionCount,
		FractionPrice:   l.FractionPrice,
		FractionBought:  l.FractionBought,
		CreatedAt:       l.CreatedAt,
	}
}

// respondMarketError maps engine error kinds onto HTTP statuses, keeping the
// kind visible so clients can react without re-deriving state.
func respondMarketError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest

	var below *market.PaymentBelowPriceError
	var mismatch *market.PaymentMismatchError

	switch {
	case errors.Is(err, market.ErrListingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotApproved),
		errors.Is(err, market.ErrInvalidSignature):
		status = http.StatusForbidden
	case errors.Is(err, market.ErrListingNotActive),
		errors.Is(err, market.ErrListingExpired),
		errors.Is(err, market.ErrAllFractionsSold):
		status = http.StatusConflict
	case errors.Is(err, token.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.As(err, &below):
		respondError(w, http.StatusPaymentRequired, "payment below price", fmt.Sprintf("shortfall=%s", below.Shortfall))
		return
	case errors.As(err, &mismatch):
		respondError(w, http.StatusBadRequest, "payment mismatch", fmt.Sprintf("required=%s difference=%s", mismatch.Required, mismatch.Difference))
		return
	}

	respondError(w, status, err.Error(), "")
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
