// Package assets answers ownership and approval queries for the unique
// assets being fractionalized. The marketplace never takes custody; it only
// reads ownership state through the Gateway when gating listing creation.
package assets

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrAssetNotFound is returned when no owner record exists for the
	// queried collection/token pair.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrNotAssetOwner is returned on transfer attempts by a non-owner.
	ErrNotAssetOwner = errors.New("caller is not the asset owner")
)

// Gateway is the read surface the listing registry depends on. The devnet
// Registry implements it over local storage; a production deployment would
// back it with chain RPC lookups instead.
type Gateway interface {
	// OwnerOf returns the current owner of one asset.
	OwnerOf(collection common.Address, tokenID uint64) (common.Address, error)

	// IsApprovedForAll reports whether owner has granted operator a
	// blanket approval over the collection's assets.
	IsApprovedForAll(owner, operator common.Address) bool
}
