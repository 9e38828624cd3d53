package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema.
// Design principles:
// 1. Prefix-based for range scans (load all listings at startup)
// 2. Zero-padded numeric components for lexicographic ordering
// 3. One flat keyspace shared by registry, token ledgers, and asset gateway

const (
	prefixListing    = "lst:" // Listing records, keyed by zero-padded id
	prefixListingSeq = "seq:" // Listing id sequence counter
	prefixTokenMeta  = "tok:" // Fraction/payment token metadata
	prefixBalance    = "bal:" // Token balances
	prefixSupply     = "sup:" // Token total supply
	prefixAsset      = "ast:" // Unique-asset ownership
	prefixApproval   = "apr:" // Unique-asset operator approvals
)

// ListingKey returns the key for a listing record.
// Format: "lst:{id}" with the id zero-padded to 20 digits so ids sort
// numerically under a prefix scan.
func ListingKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixListing, id))
}

// ListingPrefix returns the prefix covering all listing records.
func ListingPrefix() []byte {
	return []byte(prefixListing)
}

// ListingSeqKey returns the key holding the next listing id.
func ListingSeqKey() []byte {
	return []byte(prefixListingSeq + "listing")
}

// TokenMetaKey returns the key for a token's metadata.
// Format: "tok:{ledgerID}"
func TokenMetaKey(ledgerID string) []byte {
	return []byte(prefixTokenMeta + ledgerID)
}

// BalanceKey returns the key for an address's balance in one token ledger.
// Format: "bal:{ledgerID}:{address}"
func BalanceKey(ledgerID string, addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, ledgerID, addr.Hex()))
}

// SupplyKey returns the key for a token ledger's total supply.
func SupplyKey(ledgerID string) []byte {
	return []byte(prefixSupply + ledgerID)
}

// AssetKey returns the key for a unique asset's owner record.
// Format: "ast:{collection}:{tokenID}"
func AssetKey(collection common.Address, tokenID uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixAsset, collection.Hex(), tokenID))
}

// ApprovalKey returns the key for an owner->operator blanket approval.
// Format: "apr:{owner}:{operator}"
func ApprovalKey(owner, operator common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixApproval, owner.Hex(), operator.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
// Example: prefix "lst:" -> upper bound "lst;" (next byte after ':').
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
