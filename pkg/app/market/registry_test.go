package market

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fracswap/fracswap/params"
	"github.com/fracswap/fracswap/pkg/app/assets"
	"github.com/fracswap/fracswap/pkg/app/token"
	"github.com/fracswap/fracswap/pkg/crypto"
	"github.com/fracswap/fracswap/pkg/storage"
	"github.com/fracswap/fracswap/pkg/util"
)

var testCollection = common.HexToAddress("0x00000000000000000000000000000000000000c0")

// env wires a full in-memory marketplace: asset registry as the gateway,
// token factory, listing registry, payment bank, and settlement engine, all
// on one store with a manual clock.
type env struct {
	store    *storage.Store
	assets   *assets.Registry
	factory  *token.Factory
	lsigner  *crypto.ListingSigner
	clock    *util.ManualClock
	reg      *Registry
	bank     *token.Token
	bankAuth *token.Authority
	engine   *Engine
	cfg      params.Market

	seller      *crypto.Signer
	nextTokenID uint64
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	store, err := storage.NewMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := params.Default()
	assetReg := assets.NewRegistry(store, nil)
	factory := token.NewFactory(store, nil)
	lsigner := crypto.NewListingSigner(crypto.DefaultDomain())
	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))

	reg, err := NewRegistry(store, assetReg, factory, lsigner, cfg.Market, clock, nil)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}

	bank, bankAuth, err := factory.Create(cfg.Payment.Name, cfg.Payment.Symbol, cfg.Payment.Decimals)
	if err != nil {
		t.Fatalf("failed to create payment ledger: %v", err)
	}

	seller, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate seller key: %v", err)
	}

	return &env{
		store:    store,
		assets:   assetReg,
		factory:  factory,
		lsigner:  lsigner,
		clock:    clock,
		reg:      reg,
		bank:     bank,
		bankAuth: bankAuth,
		engine:   NewEngine(reg, bank, cfg.Market, nil),
		cfg:      cfg.Market,
		seller:   seller,
	}
}

// mintAsset mints a fresh asset to the seller and approves the marketplace.
func (e *env) mintAsset(t *testing.T) uint64 {
	t.Helper()
	tokenID := e.nextTokenID
	e.nextTokenID++
	if err := e.assets.Mint(testCollection, tokenID, e.seller.Address()); err != nil {
		t.Fatalf("failed to mint asset: %v", err)
	}
	if err := e.assets.SetApprovalForAll(e.seller.Address(), OperatorAddress(), true); err != nil {
		t.Fatalf("failed to approve marketplace: %v", err)
	}
	return tokenID
}

// signedRequest builds a CreateRequest for tokenID with a valid seller
// signature over its terms.
func (e *env) signedRequest(t *testing.T, tokenID uint64) CreateRequest {
	t.Helper()

	req := CreateRequest{
		Collection:    testCollection,
		TokenID:       tokenID,
		Price:         decimal.NewFromInt(10),
		Deadline:      e.clock.Now().Add(2 * time.Hour).Unix(),
		Owner:         e.seller.Address(),
		FractionCount: 4,
		FractionPrice: decimal.NewFromInt(2),
		Name:          "Fraction",
		Symbol:        "FRAC",
	}
	e.sign(t, &req)
	return req
}

// sign replaces req.Signature with a seller signature over req's terms.
func (e *env) sign(t *testing.T, req *CreateRequest) {
	t.Helper()
	sig, err := e.lsigner.SignListing(e.seller, &crypto.ListingTerms{
		Collection: req.Collection,
		TokenID:    new(big.Int).SetUint64(req.TokenID),
		Price:      req.Price.String(),
		Deadline:   big.NewInt(req.Deadline),
		Owner:      req.Owner,
	})
	if err != nil {
		t.Fatalf("failed to sign listing terms: %v", err)
	}
	req.Signature = sig
}

// createListing mints an asset and creates a default listing for it.
func (e *env) createListing(t *testing.T) uint64 {
	t.Helper()
	req := e.signedRequest(t, e.mintAsset(t))
	id, err := e.reg.Create(req, e.seller.Address())
	if err != nil {
		t.Fatalf("failed to create listing: %v", err)
	}
	return id
}

// fundBuyer credits a buyer's payment balance.
func (e *env) fundBuyer(t *testing.T, buyer common.Address, amount decimal.Decimal) {
	t.Helper()
	if err := e.bankAuth.Mint(buyer, amount); err != nil {
		t.Fatalf("failed to fund buyer: %v", err)
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	req := e.signedRequest(t, e.mintAsset(t))

	id, err := e.reg.Create(req, e.seller.Address())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id != 0 {
		t.Errorf("first id = %d, want 0", id)
	}

	l, err := e.reg.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if l.Collection != req.Collection || l.TokenID != req.TokenID {
		t.Error("asset reference does not round-trip")
	}
	if !l.Price.Equal(req.Price) || !l.FractionPrice.Equal(req.FractionPrice) {
		t.Error("prices do not round-trip")
	}
	if l.Deadline != req.Deadline || l.FractionCount != req.FractionCount {
		t.Error("deadline or fraction count does not round-trip")
	}
	if string(l.Authorization) != string(req.Signature) {
		t.Error("authorization bytes do not round-trip")
	}
	if l.Owner != e.seller.Address() {
		t.Error("owner must bind to the caller")
	}
	if !l.Active || l.FractionBought != 0 {
		t.Error("creation defaults not applied")
	}
	if l.FractionTokenID == "" {
		t.Error("fraction token must be created")
	}

	// Ids are dense and strictly increasing.
	second := e.createListing(t)
	if second != 1 {
		t.Errorf("second id = %d, want 1", second)
	}
	first, _ := e.reg.Get(id)
	if first.FractionTokenID == mustGet(t, e.reg, second).FractionTokenID {
		t.Error("fraction tokens must not be shared across listings")
	}
}

func mustGet(t *testing.T, reg *Registry, id uint64) Listing {
	t.Helper()
	l, err := reg.Get(id)
	if err != nil {
		t.Fatalf("get %d failed: %v", id, err)
	}
	return l
}

func TestCreateGate(t *testing.T) {
	e := newTestEnv(t)
	stranger, _ := crypto.GenerateKey()

	tests := []struct {
		name    string
		mutate  func(req *CreateRequest) common.Address // returns caller
		wantErr error
	}{
		{
			name: "caller not asset owner",
			mutate: func(req *CreateRequest) common.Address {
				return stranger.Address()
			},
			wantErr: ErrNotOwner,
		},
		{
			name: "unknown asset",
			mutate: func(req *CreateRequest) common.Address {
				req.TokenID = 9999
				e.sign(t, req)
				return e.seller.Address()
			},
			wantErr: ErrNotOwner,
		},
		{
			name: "marketplace not approved",
			mutate: func(req *CreateRequest) common.Address {
				if err := e.assets.SetApprovalForAll(e.seller.Address(), OperatorAddress(), false); err != nil {
					t.Fatalf("failed to revoke approval: %v", err)
				}
				return e.seller.Address()
			},
			wantErr: ErrNotApproved,
		},
		{
			name: "price below minimum",
			mutate: func(req *CreateRequest) common.Address {
				req.Price = decimal.RequireFromString("0.5")
				e.sign(t, req)
				return e.seller.Address()
			},
			wantErr: ErrPriceTooLow,
		},
		{
			name: "deadline in the past",
			mutate: func(req *CreateRequest) common.Address {
				req.Deadline = e.clock.Now().Add(-time.Hour).Unix()
				e.sign(t, req)
				return e.seller.Address()
			},
			wantErr: ErrDeadlineTooSoon,
		},
		{
			name: "deadline closer than minimum duration",
			mutate: func(req *CreateRequest) common.Address {
				req.Deadline = e.clock.Now().Add(30 * time.Minute).Unix()
				e.sign(t, req)
				return e.seller.Address()
			},
			wantErr: ErrMinDurationNotMet,
		},
		{
			name: "tampered terms invalidate signature",
			mutate: func(req *CreateRequest) common.Address {
				req.Price = decimal.NewFromInt(99) // signed over price 10
				return e.seller.Address()
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "signature by someone else",
			mutate: func(req *CreateRequest) common.Address {
				sig, err := e.lsigner.SignListing(stranger, &crypto.ListingTerms{
					Collection: req.Collection,
					TokenID:    new(big.Int).SetUint64(req.TokenID),
					Price:      req.Price.String(),
					Deadline:   big.NewInt(req.Deadline),
					Owner:      req.Owner,
				})
				if err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				req.Signature = sig
				return e.seller.Address()
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "zero fraction count",
			mutate: func(req *CreateRequest) common.Address {
				req.FractionCount = 0
				return e.seller.Address()
			},
			wantErr: ErrInvalidFractionTerms,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := e.signedRequest(t, e.mintAsset(t))
			caller := tt.mutate(&req)

			before := len(e.reg.List())
			_, err := e.reg.Create(req, caller)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := len(e.reg.List()); got != before {
				t.Errorf("registry size changed on failed create: %d -> %d", before, got)
			}

			// Re-approve for the next case.
			if err := e.assets.SetApprovalForAll(e.seller.Address(), OperatorAddress(), true); err != nil {
				t.Fatalf("failed to re-approve: %v", err)
			}
		})
	}
}

func TestCreateMintsPooledSupply(t *testing.T) {
	e := newTestEnv(t)
	id := e.createListing(t)

	tok, err := e.reg.FractionToken(id)
	if err != nil {
		t.Fatalf("FractionToken failed: %v", err)
	}

	// FractionPrice 2 * FractionCount 4
	want := decimal.NewFromInt(8)
	if got := tok.BalanceOf(tok.Pool()); !got.Equal(want) {
		t.Errorf("pooled supply = %s, want %s", got, want)
	}
	if got := tok.TotalSupply(); !got.Equal(want) {
		t.Errorf("total supply = %s, want %s", got, want)
	}
}

func TestEdit(t *testing.T) {
	e := newTestEnv(t)
	id := e.createListing(t)
	stranger, _ := crypto.GenerateKey()

	if err := e.reg.Edit(99, decimal.NewFromInt(20), true, e.seller.Address()); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("edit unknown id err = %v, want ErrListingNotFound", err)
	}

	err := e.reg.Edit(id, decimal.NewFromInt(20), false, stranger.Address())
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner edit err = %v, want ErrNotOwner", err)
	}
	l := mustGet(t, e.reg, id)
	if !l.Price.Equal(decimal.NewFromInt(10)) || !l.Active {
		t.Error("failed edit must not change the listing")
	}

	if err := e.reg.Edit(id, decimal.NewFromInt(20), false, e.seller.Address()); err != nil {
		t.Fatalf("owner edit failed: %v", err)
	}
	l = mustGet(t, e.reg, id)
	if !l.Price.Equal(decimal.NewFromInt(20)) || l.Active {
		t.Error("edit must overwrite price and active")
	}

	// Re-activation is allowed.
	if err := e.reg.Edit(id, decimal.NewFromInt(20), true, e.seller.Address()); err != nil {
		t.Fatalf("re-activation failed: %v", err)
	}
	if !mustGet(t, e.reg, id).Active {
		t.Error("owner must be able to re-activate")
	}
}

func TestTransferFraction(t *testing.T) {
	e := newTestEnv(t)
	id := e.createListing(t)
	buyer, _ := crypto.GenerateKey()
	holder := common.HexToAddress("0x00000000000000000000000000000000000000d4")

	if err := e.reg.TransferFraction(99, holder, buyer.Address()); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("unknown id err = %v, want ErrListingNotFound", err)
	}
	if err := e.reg.TransferFraction(id, common.Address{}, buyer.Address()); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("zero recipient err = %v, want ErrInvalidRecipient", err)
	}

	// Zero balance is a no-op.
	if err := e.reg.TransferFraction(id, holder, buyer.Address()); err != nil {
		t.Errorf("zero-balance transfer should be a no-op, got %v", err)
	}

	e.fundBuyer(t, buyer.Address(), decimal.NewFromInt(2))
	if err := e.engine.Execute(id, decimal.NewFromInt(2), buyer.Address()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if err := e.reg.TransferFraction(id, holder, buyer.Address()); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	tok, _ := e.reg.FractionToken(id)
	if got := tok.BalanceOf(buyer.Address()); !got.IsZero() {
		t.Errorf("buyer balance = %s, want 0", got)
	}
	if got := tok.BalanceOf(holder); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("holder balance = %s, want 2", got)
	}
}

func TestRegistryReload(t *testing.T) {
	e := newTestEnv(t)
	id := e.createListing(t)
	buyer, _ := crypto.GenerateKey()
	e.fundBuyer(t, buyer.Address(), decimal.NewFromInt(2))
	if err := e.engine.Execute(id, decimal.NewFromInt(2), buyer.Address()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	reopened, err := NewRegistry(e.store, e.assets, e.factory, e.lsigner, e.cfg, e.clock, nil)
	if err != nil {
		t.Fatalf("failed to reopen registry: %v", err)
	}

	l, err := reopened.Get(id)
	if err != nil {
		t.Fatalf("get after reload failed: %v", err)
	}
	if l.Active || l.FractionBought != 1 {
		t.Error("settled state must survive reload")
	}

	tok, err := reopened.FractionToken(id)
	if err != nil {
		t.Fatalf("FractionToken after reload failed: %v", err)
	}
	if got := tok.BalanceOf(buyer.Address()); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("buyer fraction balance after reload = %s, want 2", got)
	}

	// The id sequence continues where it left off.
	req := e.signedRequest(t, e.mintAsset(t))
	next, err := reopened.Create(req, e.seller.Address())
	if err != nil {
		t.Fatalf("create after reload failed: %v", err)
	}
	if next != id+1 {
		t.Errorf("next id = %d, want %d", next, id+1)
	}
}
