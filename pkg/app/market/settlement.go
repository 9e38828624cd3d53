package market

import (
	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fracswap/fracswap/params"
	"github.com/fracswap/fracswap/pkg/app/token"
)

// Engine settles fraction purchases: validates listing state and payment
// exactness, converts a pooled fraction into a freely held claim token, and
// disburses seller proceeds and the platform fee in payment currency. It
// shares the registry's lock, so settlement never interleaves with creation
// or edits.
type Engine struct {
	reg          *Registry
	bank         *token.Token
	feeBps       int64
	feeRecipient common.Address
	log          *zap.Logger
}

// NewEngine creates the settlement engine over a registry and the payment
// currency ledger.
func NewEngine(reg *Registry, bank *token.Token, cfg params.Market, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		reg:          reg,
		bank:         bank,
		feeBps:       cfg.FeeBps,
		feeRecipient: cfg.FeeRecipient,
		log:          log,
	}
}

// Execute settles one fraction purchase. Validation order matters: each step
// fails with its own kind, and a failure at any step leaves every ledger and
// the listing untouched.
func (e *Engine) Execute(id uint64, payment decimal.Decimal, caller common.Address) error {
	e.reg.mu.Lock()
	defer e.reg.mu.Unlock()

	// 1. Listing must exist.
	l, ok := e.reg.listings[id]
	if !ok {
		return ErrListingNotFound
	}

	// 2. Fractions must remain.
	if l.FractionBought >= l.FractionCount {
		return ErrAllFractionsSold
	}

	// 3. Deadline must not have passed.
	if e.reg.clock.Now().Unix() > l.Deadline {
		return ErrListingExpired
	}

	// 4. Listing must be active.
	if !l.Active {
		return ErrListingNotActive
	}

	// 5. Payment must cover the fraction price.
	if payment.LessThan(l.FractionPrice) {
		return &PaymentBelowPriceError{Shortfall: l.FractionPrice.Sub(payment)}
	}

	// 6. Payment must match it exactly.
	if !payment.Equal(l.FractionPrice) {
		return &PaymentMismatchError{
			Required:   l.FractionPrice,
			Difference: payment.Sub(l.FractionPrice),
		}
	}

	fee := l.FractionPrice.
		Mul(decimal.NewFromInt(e.feeBps)).
		Div(decimal.NewFromInt(10000)).
		Truncate(e.bank.Decimals())
	proceeds := l.FractionPrice.Sub(fee)

	// Recipient and ledger pre-checks: every transfer below is validated
	// here first, so the mutation phase cannot fail on recipient or
	// balance grounds and the settlement stays all-or-nothing.
	if fee.IsPositive() && e.feeRecipient == (common.Address{}) {
		return pkgerrors.Wrap(token.ErrZeroAddress, "fee recipient unset")
	}
	if proceeds.IsPositive() && l.Owner == (common.Address{}) {
		return pkgerrors.Wrapf(token.ErrZeroAddress, "owner of listing %d", id)
	}
	if e.bank.BalanceOf(caller).LessThan(payment) {
		return pkgerrors.Wrapf(token.ErrInsufficientBalance, "buyer %s payment balance", caller.Hex())
	}
	h := e.reg.tokens[id]
	if h.tok.BalanceOf(h.tok.Pool()).LessThan(payment) {
		return pkgerrors.Wrapf(token.ErrInsufficientBalance, "custody pool for listing %d", id)
	}

	// Settle against a copy; the cached record is only replaced once every
	// side effect has landed, so a failure never leaves it half-updated.
	updated := *l
	updated.Active = false

	// Convert a pooled fraction into a freely held one. Mint to the buyer,
	// burn the same amount from custody; marketplace-held supply is
	// conserved across the pair.
	if err := h.auth.Mint(caller, payment); err != nil {
		return pkgerrors.Wrap(err, "failed to mint fraction to buyer")
	}
	if err := h.auth.Burn(h.tok.Pool(), payment); err != nil {
		return pkgerrors.Wrap(err, "failed to burn pooled fraction")
	}

	if proceeds.IsPositive() {
		if err := e.bank.Transfer(caller, l.Owner, proceeds); err != nil {
			return pkgerrors.Wrap(err, "failed to pay seller")
		}
	}
	if fee.IsPositive() {
		if err := e.bank.Transfer(caller, e.feeRecipient, fee); err != nil {
			return pkgerrors.Wrap(err, "failed to pay platform fee")
		}
	}

	updated.FractionBought++
	if err := e.reg.persist(&updated); err != nil {
		return err
	}
	*l = updated

	e.log.Info("listing_executed",
		zap.Uint64("id", id),
		zap.String("buyer", caller.Hex()),
		zap.String("payment", payment.String()),
		zap.String("fee", fee.String()),
		zap.String("proceeds", proceeds.String()),
		zap.Uint64("fraction_bought", l.FractionBought))
	e.reg.emit(EventListingExecuted, l)
	return nil
}
