package api

import "github.com/shopspring/decimal"

// Request and response types for the REST endpoints. Monetary fields ride as
// decimal strings so amounts survive the wire exactly.

// CreateListingRequest is the inbound createOrder payload. Owner is the
// identity the authorization signature claims; Caller is the submitting
// identity the engine binds the listing to.
type CreateListingRequest struct {
	Collection    string          `json:"collection"`
	TokenID       uint64          `json:"token_id"`
	Price         decimal.Decimal `json:"price"`
	Signature     string          `json:"signature"` // 0x-prefixed 65-byte hex
	Deadline      int64           `json:"deadline"`  // unix seconds
	Owner         string          `json:"owner"`
	FractionCount uint64          `json:"fraction_count"`
	FractionPrice decimal.Decimal `json:"fraction_price"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	Caller        string          `json:"caller"`
}

type CreateListingResponse struct {
	ListingID uint64 `json:"listing_id"`
}

// ListingInfo is the public listing snapshot.
type ListingInfo struct {
	ID              uint64          `json:"id"`
	Collection      string          `json:"collection"`
	TokenID         uint64          `json:"token_id"`
	Price           decimal.Decimal `json:"price"`
	Deadline        int64           `json:"deadline"`
	Owner           string          `json:"owner"`
	Active          bool            `json:"active"`
	FractionTokenID string          `json:"fraction_token_id"`
	FractionCount   uint64          `json:"fraction_count"`
	FractionPrice   decimal.Decimal `json:"fraction_price"`
	FractionBought  uint64          `json:"fraction_bought"`
	CreatedAt       int64           `json:"created_at"`
}

type ExecuteRequest struct {
	Payment decimal.Decimal `json:"payment"`
	Caller  string          `json:"caller"`
}

type EditRequest struct {
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
	Caller string          `json:"caller"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Caller string `json:"caller"`
}

type BalanceResponse struct {
	Address string          `json:"address"`
	Symbol  string          `json:"symbol"`
	Balance decimal.Decimal `json:"balance"`
}

type FaucetRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client->server subscription message.
// Channels: "listings" for all events, "listings:{id}" for one listing.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
