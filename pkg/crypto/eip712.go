package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain represents the EIP-712 domain separator for listing authorizations.
// This prevents replay attacks across different chains/deployments.
type Domain struct {
	Name              string         // Protocol name (e.g., "FracSwap")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local)
	VerifyingContract common.Address // Contract address (or zero for off-chain)
}

// DefaultDomain returns the default EIP-712 domain for FracSwap.
func DefaultDomain() Domain {
	return Domain{
		Name:              "FracSwap",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{}, // Zero address for off-chain signing
	}
}

// ListingTerms is the typed data an asset owner signs to authorize a
// fractional listing. The signature binds the terms to the owner's identity;
// it is captured at listing creation and checked exactly once.
type ListingTerms struct {
	Collection common.Address // Unique-asset collection the asset lives in
	TokenID    *big.Int       // Asset identifier within the collection
	Price      string         // Whole-asset reference price (decimal string)
	Deadline   *big.Int       // Listing deadline (Unix seconds)
	Owner      common.Address // Claimed asset owner
}

// ListingSigner hashes and verifies listing authorizations for one domain.
type ListingSigner struct {
	domain Domain
}

// NewListingSigner creates a listing signer/verifier bound to a domain.
func NewListingSigner(domain Domain) *ListingSigner {
	return &ListingSigner{domain: domain}
}

// HashListing hashes listing terms as EIP-712 typed data.
// Returns the 32-byte digest that should be signed.
func (l *ListingSigner) HashListing(terms *ListingTerms) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Listing": []apitypes.Type{
				{Name: "collection", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "price", Type: "string"},
				{Name: "deadline", Type: "uint256"},
				{Name: "owner", Type: "address"},
			},
		},
		PrimaryType: "Listing",
		Domain: apitypes.TypedDataDomain{
			Name:              l.domain.Name,
			Version:           l.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(l.domain.ChainID),
			VerifyingContract: l.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"collection": terms.Collection.Hex(),
			"tokenId":    terms.TokenID.String(),
			"price":      terms.Price,
			"deadline":   terms.Deadline.String(),
			"owner":      terms.Owner.Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := crypto.Keccak256Hash(rawData)

	return digest.Bytes(), nil
}

// SignListing signs listing terms and returns the 65-byte signature.
func (l *ListingSigner) SignListing(signer *Signer, terms *ListingTerms) ([]byte, error) {
	hash, err := l.HashListing(terms)
	if err != nil {
		return nil, fmt.Errorf("failed to hash listing: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign listing: %w", err)
	}

	return signature, nil
}

// RecoverListingSigner recovers the address that signed the listing terms.
func (l *ListingSigner) RecoverListingSigner(terms *ListingTerms, signature []byte) (common.Address, error) {
	hash, err := l.HashListing(terms)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash listing: %w", err)
	}

	return RecoverAddress(hash, signature)
}

// VerifyListingAuthorization reports whether signature over the listing terms
// was produced by caller. Fails closed: malformed terms or signatures yield
// false, never an error that could bypass the check.
func (l *ListingSigner) VerifyListingAuthorization(terms *ListingTerms, signature []byte, caller common.Address) bool {
	if terms == nil || terms.TokenID == nil || terms.Deadline == nil {
		return false
	}

	hash, err := l.HashListing(terms)
	if err != nil {
		return false
	}

	return VerifySignature(caller, hash, signature)
}
