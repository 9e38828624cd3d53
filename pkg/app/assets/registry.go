package assets

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fracswap/fracswap/pkg/storage"
)

// assetRecord is the persisted owner entry for one unique asset.
type assetRecord struct {
	Collection common.Address `json:"collection"`
	TokenID    uint64         `json:"token_id"`
	Owner      common.Address `json:"owner"`
}

// Registry is the devnet asset gateway. It keeps ownership and approval
// records in local storage so the marketplace can run without an external
// chain. Implements Gateway.
type Registry struct {
	mu    sync.RWMutex
	store *storage.Store
	log   *zap.Logger
}

// NewRegistry creates an asset registry over the given store.
func NewRegistry(store *storage.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{store: store, log: log}
}

// Mint records a new asset owned by owner. Re-minting an existing asset
// is rejected.
func (r *Registry) Mint(collection common.Address, tokenID uint64, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := storage.AssetKey(collection, tokenID)
	var existing assetRecord
	found, err := r.store.GetJSON(key, &existing)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check asset record")
	}
	if found {
		return pkgerrors.Errorf("asset %s/%d already exists", collection.Hex(), tokenID)
	}

	rec := assetRecord{Collection: collection, TokenID: tokenID, Owner: owner}
	if err := r.store.PutJSON(key, rec); err != nil {
		return pkgerrors.Wrap(err, "failed to persist asset record")
	}

	r.log.Info("asset_minted",
		zap.String("collection", collection.Hex()),
		zap.Uint64("token_id", tokenID),
		zap.String("owner", owner.Hex()))
	return nil
}

// OwnerOf returns the current owner of an asset.
func (r *Registry) OwnerOf(collection common.Address, tokenID uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rec assetRecord
	found, err := r.store.GetJSON(storage.AssetKey(collection, tokenID), &rec)
	if err != nil {
		return common.Address{}, pkgerrors.Wrap(err, "failed to load asset record")
	}
	if !found {
		return common.Address{}, ErrAssetNotFound
	}
	return rec.Owner, nil
}

// SetApprovalForAll grants or revokes operator's blanket approval over
// owner's assets.
func (r *Registry) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := storage.ApprovalKey(owner, operator)
	if !approved {
		if err := r.store.Delete(key); err != nil {
			return pkgerrors.Wrap(err, "failed to revoke approval")
		}
		return nil
	}
	if err := r.store.PutJSON(key, true); err != nil {
		return pkgerrors.Wrap(err, "failed to persist approval")
	}

	r.log.Info("approval_set",
		zap.String("owner", owner.Hex()),
		zap.String("operator", operator.Hex()))
	return nil
}

// IsApprovedForAll reports whether operator holds a blanket approval from
// owner. Lookup failures read as not approved.
func (r *Registry) IsApprovedForAll(owner, operator common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var approved bool
	found, err := r.store.GetJSON(storage.ApprovalKey(owner, operator), &approved)
	if err != nil || !found {
		return false
	}
	return approved
}

// TransferFrom moves an asset to a new owner. Only the current owner may
// move it. The settlement path never calls this; custody stays with the
// seller even after fractions change hands.
func (r *Registry) TransferFrom(from, to, collection common.Address, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := storage.AssetKey(collection, tokenID)
	var rec assetRecord
	found, err := r.store.GetJSON(key, &rec)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load asset record")
	}
	if !found {
		return ErrAssetNotFound
	}
	if rec.Owner != from {
		return ErrNotAssetOwner
	}

	rec.Owner = to
	if err := r.store.PutJSON(key, rec); err != nil {
		return pkgerrors.Wrap(err, "failed to persist asset record")
	}

	r.log.Info("asset_transferred",
		zap.String("collection", collection.Hex()),
		zap.Uint64("token_id", tokenID),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()))
	return nil
}
