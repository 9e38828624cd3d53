package market

import (
	"encoding/json"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fracswap/fracswap/params"
	"github.com/fracswap/fracswap/pkg/app/assets"
	"github.com/fracswap/fracswap/pkg/app/token"
	"github.com/fracswap/fracswap/pkg/crypto"
	"github.com/fracswap/fracswap/pkg/storage"
	"github.com/fracswap/fracswap/pkg/util"
)

// fractionDecimals is the precision of every per-listing fraction ledger.
const fractionDecimals = 18

// tokenHandle pairs a listing's fraction ledger with the mint/burn authority
// the factory issued for it. The authority never leaves this package.
type tokenHandle struct {
	tok  *token.Token
	auth *token.Authority
}

// Registry owns the listing table: creation gating, lookup, owner edits, and
// fraction claim transfers. All operations serialize on one mutex so the
// validate-then-mutate sequences never interleave; the settlement engine
// shares the same lock.
type Registry struct {
	mu sync.Mutex

	store   *storage.Store
	gateway assets.Gateway
	factory *token.Factory
	signer  *crypto.ListingSigner
	clock   util.Clock
	log     *zap.Logger
	sink    Sink

	cfg params.Market

	nextID   uint64
	listings map[uint64]*Listing
	tokens   map[uint64]tokenHandle
}

// NewRegistry opens the registry over the given store, reloading every
// persisted listing and reopening its fraction ledger.
func NewRegistry(
	store *storage.Store,
	gateway assets.Gateway,
	factory *token.Factory,
	signer *crypto.ListingSigner,
	cfg params.Market,
	clock util.Clock,
	log *zap.Logger,
) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = util.RealClock{}
	}

	r := &Registry{
		store:    store,
		gateway:  gateway,
		factory:  factory,
		signer:   signer,
		clock:    clock,
		log:      log,
		cfg:      cfg,
		listings: make(map[uint64]*Listing),
		tokens:   make(map[uint64]tokenHandle),
	}

	err := store.ScanPrefix(storage.ListingPrefix(), func(_, value []byte) error {
		var l Listing
		if err := json.Unmarshal(value, &l); err != nil {
			return pkgerrors.Wrap(err, "failed to decode listing record")
		}
		tok, auth, err := factory.Open(l.FractionTokenID)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to reopen fraction ledger for listing %d", l.ID)
		}
		r.listings[l.ID] = &l
		r.tokens[l.ID] = tokenHandle{tok: tok, auth: auth}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var seq uint64
	found, err := store.GetJSON(storage.ListingSeqKey(), &seq)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load listing sequence")
	}
	if found {
		r.nextID = seq
	}

	log.Info("listing_registry_loaded",
		zap.Int("listings", len(r.listings)),
		zap.Uint64("next_id", r.nextID))
	return r, nil
}

// SetSink attaches the event sink. Called once at startup, before the API
// accepts traffic.
func (r *Registry) SetSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = s
}

// Create runs the full creation gate and, on success, issues the listing's
// fraction token, mints the pooled supply, and appends the record. Returns
// the assigned id. Each gate failure is a distinct error and leaves the
// registry unchanged.
func (r *Registry) Create(req CreateRequest, caller common.Address) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 1. Caller must own the referenced asset.
	owner, err := r.gateway.OwnerOf(req.Collection, req.TokenID)
	if err != nil || owner != caller {
		return 0, ErrNotOwner
	}

	// 2. The owner must have approved the marketplace operator.
	if !r.gateway.IsApprovedForAll(owner, OperatorAddress()) {
		return 0, ErrNotApproved
	}

	// 3. Price floor.
	if req.Price.LessThan(r.cfg.MinPrice) {
		return 0, ErrPriceTooLow
	}

	// 4. Deadline must not be in the past.
	now := r.clock.Now().Unix()
	if req.Deadline < now {
		return 0, ErrDeadlineTooSoon
	}

	// 5. Deadline must be at least the minimum duration away.
	if req.Deadline-now < int64(r.cfg.MinListingDuration.Seconds()) {
		return 0, ErrMinDurationNotMet
	}

	// 6. The authorization signature over the claimed terms must recover
	// to the caller.
	terms := &crypto.ListingTerms{
		Collection: req.Collection,
		TokenID:    new(big.Int).SetUint64(req.TokenID),
		Price:      req.Price.String(),
		Deadline:   big.NewInt(req.Deadline),
		Owner:      req.Owner,
	}
	if !r.signer.VerifyListingAuthorization(terms, req.Signature, caller) {
		return 0, ErrInvalidSignature
	}

	if req.FractionCount == 0 || !req.FractionPrice.IsPositive() {
		return 0, ErrInvalidFractionTerms
	}

	tok, auth, err := r.factory.Create(req.Name, req.Symbol, fractionDecimals)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to create fraction token")
	}

	// The whole fractional supply starts pooled under marketplace custody.
	supply := req.FractionPrice.Mul(decimal.NewFromInt(int64(req.FractionCount)))
	if err := auth.Mint(tok.Pool(), supply); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to mint pooled supply")
	}

	listing := &Listing{
		ID:              r.nextID,
		Collection:      req.Collection,
		TokenID:         req.TokenID,
		Price:           req.Price,
		Authorization:   req.Signature,
		Deadline:        req.Deadline,
		Owner:           caller,
		Active:          true,
		FractionTokenID: tok.LedgerID(),
		FractionCount:   req.FractionCount,
		FractionPrice:   req.FractionPrice,
		FractionBought:  0,
		CreatedAt:       now,
	}

	if err := r.persistWithSeq(listing, r.nextID+1); err != nil {
		return 0, err
	}

	r.listings[listing.ID] = listing
	r.tokens[listing.ID] = tokenHandle{tok: tok, auth: auth}
	r.nextID++

	r.log.Info("listing_created",
		zap.Uint64("id", listing.ID),
		zap.String("collection", listing.Collection.Hex()),
		zap.Uint64("token_id", listing.TokenID),
		zap.String("owner", listing.Owner.Hex()),
		zap.String("fraction_price", listing.FractionPrice.String()),
		zap.Uint64("fraction_count", listing.FractionCount))
	r.emit(EventListingCreated, listing)

	return listing.ID, nil
}

// Get returns a snapshot of one listing.
func (r *Registry) Get(id uint64) (Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return Listing{}, ErrListingNotFound
	}
	return *l, nil
}

// List returns snapshots of all listings in id order.
func (r *Registry) List() []Listing {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edit overwrites a listing's price and active flag. Owner-gated; there are
// no transition restrictions, so an owner may re-activate an inactive
// listing.
func (r *Registry) Edit(id uint64, newPrice decimal.Decimal, newActive bool, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	if l.Owner != caller {
		return ErrNotOwner
	}

	l.Price = newPrice
	l.Active = newActive
	if err := r.persist(l); err != nil {
		return err
	}

	r.log.Info("listing_edited",
		zap.Uint64("id", id),
		zap.String("price", newPrice.String()),
		zap.Bool("active", newActive))
	r.emit(EventListingEdited, l)
	return nil
}

// TransferFraction moves the caller's entire fraction balance for one
// listing to another holder. A zero recipient is rejected; a zero balance is
// a no-op. Balance sufficiency is the token's own guarantee.
func (r *Registry) TransferFraction(id uint64, to, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.tokens[id]
	if !ok {
		return ErrListingNotFound
	}
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}

	balance := h.tok.BalanceOf(caller)
	if balance.IsZero() {
		return nil
	}
	if err := h.tok.Transfer(caller, to, balance); err != nil {
		return pkgerrors.Wrap(err, "failed to transfer fraction balance")
	}

	r.log.Info("fraction_transferred",
		zap.Uint64("id", id),
		zap.String("from", caller.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", balance.String()))
	return nil
}

// FractionToken returns the fraction ledger of one listing, for balance
// queries.
func (r *Registry) FractionToken(id uint64) (*token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.tokens[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return h.tok, nil
}

// persist writes one listing record.
func (r *Registry) persist(l *Listing) error {
	if err := r.store.PutJSON(storage.ListingKey(l.ID), l); err != nil {
		return pkgerrors.Wrapf(err, "failed to persist listing %d", l.ID)
	}
	return nil
}

// persistWithSeq writes the listing and the advanced id sequence atomically.
func (r *Registry) persistWithSeq(l *Listing, nextID uint64) error {
	batch := r.store.NewBatch()
	defer batch.Close()

	if err := batch.PutJSON(storage.ListingKey(l.ID), l); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode listing %d", l.ID)
	}
	if err := batch.PutJSON(storage.ListingSeqKey(), nextID); err != nil {
		return pkgerrors.Wrap(err, "failed to encode listing sequence")
	}
	if err := batch.Commit(); err != nil {
		return pkgerrors.Wrapf(err, "failed to persist listing %d", l.ID)
	}
	return nil
}
