package assets

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fracswap/fracswap/pkg/storage"
)

var (
	collection = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operator   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.NewMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewRegistry(store, nil)
}

func TestMintAndOwnerOf(t *testing.T) {
	reg := newTestRegistry(t)

	if err := reg.Mint(collection, 1, owner); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	got, err := reg.OwnerOf(collection, 1)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if got != owner {
		t.Errorf("owner = %s, want %s", got.Hex(), owner.Hex())
	}

	if err := reg.Mint(collection, 1, owner); err == nil {
		t.Error("re-minting the same asset should fail")
	}
}

func TestOwnerOfUnknownAsset(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.OwnerOf(collection, 99)
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("err = %v, want ErrAssetNotFound", err)
	}
}

func TestApprovalLifecycle(t *testing.T) {
	reg := newTestRegistry(t)

	if reg.IsApprovedForAll(owner, operator) {
		t.Error("approval should default to false")
	}

	if err := reg.SetApprovalForAll(owner, operator, true); err != nil {
		t.Fatalf("SetApprovalForAll failed: %v", err)
	}
	if !reg.IsApprovedForAll(owner, operator) {
		t.Error("approval should be set")
	}
	// Approvals are directional
	if reg.IsApprovedForAll(operator, owner) {
		t.Error("approval must not apply in reverse")
	}

	if err := reg.SetApprovalForAll(owner, operator, false); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if reg.IsApprovedForAll(owner, operator) {
		t.Error("approval should be revoked")
	}
}

func TestTransferFrom(t *testing.T) {
	reg := newTestRegistry(t)
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	if err := reg.Mint(collection, 7, owner); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := reg.TransferFrom(buyer, buyer, collection, 7); !errors.Is(err, ErrNotAssetOwner) {
		t.Errorf("non-owner transfer err = %v, want ErrNotAssetOwner", err)
	}
	if err := reg.TransferFrom(owner, buyer, collection, 8); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("missing asset err = %v, want ErrAssetNotFound", err)
	}

	if err := reg.TransferFrom(owner, buyer, collection, 7); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	got, err := reg.OwnerOf(collection, 7)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if got != buyer {
		t.Errorf("owner = %s, want %s", got.Hex(), buyer.Hex())
	}
}

func TestPersistenceAcrossRegistryInstances(t *testing.T) {
	store, err := storage.NewMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	first := NewRegistry(store, nil)
	if err := first.Mint(collection, 3, owner); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := first.SetApprovalForAll(owner, operator, true); err != nil {
		t.Fatalf("SetApprovalForAll failed: %v", err)
	}

	second := NewRegistry(store, nil)
	got, err := second.OwnerOf(collection, 3)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if got != owner {
		t.Errorf("owner = %s, want %s", got.Hex(), owner.Hex())
	}
	if !second.IsApprovedForAll(owner, operator) {
		t.Error("approval should survive registry restart")
	}
}
