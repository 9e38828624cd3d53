package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Every failure carries a distinct kind and aborts the whole operation with
// no state change. The API layer maps these to HTTP status codes.
var (
	// Creation gate
	ErrNotOwner             = errors.New("caller is not the asset owner")
	ErrNotApproved          = errors.New("marketplace is not approved for the asset")
	ErrPriceTooLow          = errors.New("price is below the minimum")
	ErrDeadlineTooSoon      = errors.New("deadline is in the past")
	ErrMinDurationNotMet    = errors.New("deadline is closer than the minimum listing duration")
	ErrInvalidSignature     = errors.New("authorization signature does not verify")
	ErrInvalidFractionTerms = errors.New("fraction count and price must be positive")

	// Lookup and settlement
	ErrListingNotFound  = errors.New("listing not found")
	ErrListingNotActive = errors.New("listing is not active")
	ErrListingExpired   = errors.New("listing deadline has passed")
	ErrAllFractionsSold = errors.New("all fractions are sold")

	// Claim transfer
	ErrInvalidRecipient = errors.New("recipient address must not be zero")
)

// PaymentBelowPriceError reports a payment short of the fraction price,
// carrying the shortfall so the buyer can top up without re-deriving state.
type PaymentBelowPriceError struct {
	Shortfall decimal.Decimal
}

func (e *PaymentBelowPriceError) Error() string {
	return fmt.Sprintf("payment below fraction price: short %s", e.Shortfall)
}

// PaymentMismatchError reports an inexact payment. Difference is signed:
// positive for overpayment. Underpayment is caught first as
// PaymentBelowPriceError, so the two never collide.
type PaymentMismatchError struct {
	Required   decimal.Decimal
	Difference decimal.Decimal
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payment must equal fraction price %s exactly (off by %s)", e.Required, e.Difference)
}
