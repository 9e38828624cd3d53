package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fracswap/fracswap/pkg/crypto"
)

// sign-listing produces the EIP-712 authorization a seller attaches to a
// createOrder request. With no -key flag it generates a throwaway keypair.
func main() {
	var (
		keyHex     = flag.String("key", os.Getenv("PRIVATE_KEY"), "seller private key hex (generates one if empty)")
		collection = flag.String("collection", "0x00000000000000000000000000000000000000c0", "asset collection address")
		tokenID    = flag.Uint64("token-id", 1, "asset token id")
		price      = flag.String("price", "10", "whole-asset reference price")
		hours      = flag.Int64("hours", 24, "listing duration in hours")
		count      = flag.Uint64("fractions", 4, "fraction count")
		fprice     = flag.String("fraction-price", "2", "price per fraction")
		name       = flag.String("name", "Fraction", "fraction token name")
		symbol     = flag.String("symbol", "FRAC", "fraction token symbol")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex == "" {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
		if err == nil {
			fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
		}
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	pub, err := hex.DecodeString(signer.PublicKeyHex())
	if err != nil {
		fmt.Printf("Error decoding public key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n\n", crypto.AddressFromUncompressedPub(pub))

	deadline := time.Now().Add(time.Duration(*hours) * time.Hour).Unix()
	terms := &crypto.ListingTerms{
		Collection: common.HexToAddress(*collection),
		TokenID:    new(big.Int).SetUint64(*tokenID),
		Price:      *price,
		Deadline:   big.NewInt(deadline),
		Owner:      signer.Address(),
	}

	fmt.Println("Listing Terms:")
	fmt.Printf("  Collection: %s\n", terms.Collection.Hex())
	fmt.Printf("  Token ID: %s\n", terms.TokenID)
	fmt.Printf("  Price: %s\n", terms.Price)
	fmt.Printf("  Deadline: %d (%s)\n", deadline, time.Unix(deadline, 0).UTC().Format(time.RFC3339))
	fmt.Printf("  Owner: %s\n\n", terms.Owner.Hex())

	lsigner := crypto.NewListingSigner(crypto.DefaultDomain())
	signature, err := lsigner.SignListing(signer, terms)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n", signature)

	r, s, v, err := crypto.SignatureToRSV(signature)
	if err != nil {
		fmt.Printf("Error splitting signature: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  r: 0x%064x\n  s: 0x%064x\n  v: %d\n\n", r, s, v)

	// Verify before printing the request body.
	if !lsigner.VerifyListingAuthorization(terms, signature, signer.Address()) {
		fmt.Println("Signature does not verify")
		os.Exit(1)
	}
	fmt.Println("Signature verified")

	body := map[string]interface{}{
		"collection":     terms.Collection.Hex(),
		"token_id":       *tokenID,
		"price":          *price,
		"signature":      fmt.Sprintf("0x%x", signature),
		"deadline":       deadline,
		"owner":          signer.Address().Hex(),
		"fraction_count": *count,
		"fraction_price": *fprice,
		"name":           *name,
		"symbol":         *symbol,
		"caller":         signer.Address().Hex(),
	}
	bodyJSON, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nTo create this listing:")
	fmt.Println("  POST http://localhost:8080/api/v1/listings")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(bodyJSON))
}
