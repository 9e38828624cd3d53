// Package market implements the listing registry and the settlement engine:
// creation gating, fractional purchase settlement with exact-payment
// reconciliation, owner edits, and fraction claim transfers.
package market

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Listing is one unique asset offered for fractional sale. Records are
// append-only: created once, mutated by Edit and Execute, never deleted.
type Listing struct {
	// ID is dense and strictly increasing from 0, never reused.
	ID uint64 `json:"id"`

	// Asset reference, immutable after creation.
	Collection common.Address `json:"collection"`
	TokenID    uint64         `json:"token_id"`

	// Price is the whole-asset reference price. Editable by the owner.
	Price decimal.Decimal `json:"price"`

	// Authorization is the EIP-712 signature captured at creation. It is
	// checked exactly once, during the creation gate, and kept for audit.
	Authorization []byte `json:"authorization"`

	// Deadline is the listing expiry in unix seconds. Immutable.
	Deadline int64 `json:"deadline"`

	// Owner is the verified caller at creation time. The client-supplied
	// owner field is advisory only and never stored.
	Owner common.Address `json:"owner"`

	// Active gates purchases. True at creation, cleared by a fill or by
	// Edit; the owner may re-activate through Edit.
	Active bool `json:"active"`

	// FractionTokenID references the per-listing fungible ledger. Unique,
	// never shared across listings.
	FractionTokenID string `json:"fraction_token_id"`

	// FractionCount is how many fractions the asset is divided into.
	FractionCount uint64 `json:"fraction_count"`

	// FractionPrice is the price of one fraction. Immutable post-creation;
	// only Price is editable.
	FractionPrice decimal.Decimal `json:"fraction_price"`

	// FractionBought counts fractions sold. Starts at 0, monotonically
	// non-decreasing, never exceeds FractionCount.
	FractionBought uint64 `json:"fraction_bought"`

	CreatedAt int64 `json:"created_at"`
}

// CreateRequest carries the inbound listing terms. Owner is advisory: it is
// the identity the authorization signature claims, used to rebuild the
// signed digest. The stored Listing.Owner is always the verified caller.
type CreateRequest struct {
	Collection    common.Address  `json:"collection"`
	TokenID       uint64          `json:"token_id"`
	Price         decimal.Decimal `json:"price"`
	Signature     []byte          `json:"signature"`
	Deadline      int64           `json:"deadline"`
	Owner         common.Address  `json:"owner"`
	FractionCount uint64          `json:"fraction_count"`
	FractionPrice decimal.Decimal `json:"fraction_price"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
}

// OperatorAddress is the marketplace's own identity, the operator asset
// owners must approve before listing. Derived deterministically so every
// node and client agrees on it without configuration.
func OperatorAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("fracswap/marketplace"))[12:])
}
