package token

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/fracswap/fracswap/pkg/storage"
)

var (
	ErrZeroAddress         = errors.New("token: zero address")
	ErrNonPositiveAmount   = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

// Meta is the persisted description of one fungible ledger.
type Meta struct {
	LedgerID string `json:"ledger_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Token is a fungible balance ledger. One instance exists per listing (the
// fraction token) plus one for the payment currency. Balance-moving
// operations never leave a negative balance; transfers require sufficient
// balance; zero-address recipients are rejected. Mint and burn are only
// reachable through the Authority capability handed out at creation.
type Token struct {
	mu    sync.RWMutex
	meta  Meta
	pool  common.Address
	store *storage.Store
}

// Authority is the mint/burn capability for one Token. The factory hands it
// to exactly one holder (the settlement engine acting for the owning
// listing); holding a *Token alone does not allow supply changes.
type Authority struct {
	t *Token
}

func newToken(meta Meta, store *storage.Store) *Token {
	// Each ledger gets a reserved custody pool address derived from its id.
	// No key exists for it, so pooled funds can only move via mint/burn.
	poolSeed := crypto.Keccak256([]byte("fracswap/pool:" + meta.LedgerID))
	return &Token{
		meta:  meta,
		pool:  common.BytesToAddress(poolSeed[12:]),
		store: store,
	}
}

func (t *Token) LedgerID() string     { return t.meta.LedgerID }
func (t *Token) Name() string         { return t.meta.Name }
func (t *Token) Symbol() string       { return t.meta.Symbol }
func (t *Token) Decimals() int32      { return t.meta.Decimals }
func (t *Token) Pool() common.Address { return t.pool }

// BalanceOf returns addr's balance; unset balances are zero.
func (t *Token) BalanceOf(addr common.Address) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance(addr)
}

// TotalSupply returns the ledger's total minted supply.
func (t *Token) TotalSupply() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var supply decimal.Decimal
	ok, err := t.store.GetJSON(storage.SupplyKey(t.meta.LedgerID), &supply)
	if err != nil || !ok {
		return decimal.Zero
	}
	return supply
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount decimal.Decimal) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fromBal := t.balance(from)
	if fromBal.LessThan(amount) {
		return pkgerrors.Wrapf(ErrInsufficientBalance, "%s has %s, needs %s",
			from.Hex(), fromBal.String(), amount.String())
	}
	if from == to {
		return nil
	}

	batch := t.store.NewBatch()
	defer batch.Close()
	if err := batch.PutJSON(storage.BalanceKey(t.meta.LedgerID, from), fromBal.Sub(amount)); err != nil {
		return err
	}
	if err := batch.PutJSON(storage.BalanceKey(t.meta.LedgerID, to), t.balance(to).Add(amount)); err != nil {
		return err
	}
	return pkgerrors.Wrap(batch.Commit(), "failed to persist transfer")
}

// Mint creates amount new units credited to to.
func (a *Authority) Mint(to common.Address, amount decimal.Decimal) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	t := a.t
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := t.store.NewBatch()
	defer batch.Close()
	if err := batch.PutJSON(storage.BalanceKey(t.meta.LedgerID, to), t.balance(to).Add(amount)); err != nil {
		return err
	}
	if err := batch.PutJSON(storage.SupplyKey(t.meta.LedgerID), t.supply().Add(amount)); err != nil {
		return err
	}
	return pkgerrors.Wrap(batch.Commit(), "failed to persist mint")
}

// Burn destroys amount units held by from.
func (a *Authority) Burn(from common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	t := a.t
	t.mu.Lock()
	defer t.mu.Unlock()

	fromBal := t.balance(from)
	if fromBal.LessThan(amount) {
		return pkgerrors.Wrapf(ErrInsufficientBalance, "%s has %s, burning %s",
			from.Hex(), fromBal.String(), amount.String())
	}

	batch := t.store.NewBatch()
	defer batch.Close()
	if err := batch.PutJSON(storage.BalanceKey(t.meta.LedgerID, from), fromBal.Sub(amount)); err != nil {
		return err
	}
	if err := batch.PutJSON(storage.SupplyKey(t.meta.LedgerID), t.supply().Sub(amount)); err != nil {
		return err
	}
	return pkgerrors.Wrap(batch.Commit(), "failed to persist burn")
}

// Token returns the ledger this authority controls.
func (a *Authority) Token() *Token { return a.t }

// balance reads a holder's balance without locking; callers hold t.mu.
func (t *Token) balance(addr common.Address) decimal.Decimal {
	var bal decimal.Decimal
	ok, err := t.store.GetJSON(storage.BalanceKey(t.meta.LedgerID, addr), &bal)
	if err != nil || !ok {
		return decimal.Zero
	}
	return bal
}

func (t *Token) supply() decimal.Decimal {
	var supply decimal.Decimal
	ok, err := t.store.GetJSON(storage.SupplyKey(t.meta.LedgerID), &supply)
	if err != nil || !ok {
		return decimal.Zero
	}
	return supply
}
