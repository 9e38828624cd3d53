package crypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressFromUncompressedPub expects a 65-byte uncompressed secp256k1 pubkey
// (0x04 || X || Y). Returns an EIP-55 checksummed hex string like 0xABcd...
// Returns "" for malformed input.
func AddressFromUncompressedPub(pub []byte) string {
	if len(pub) != 65 || pub[0] != 0x04 {
		return ""
	}
	// address = last 20 bytes of keccak256(pub[1:])
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	sum := h.Sum(nil)
	return EIP55(sum[12:])
}

// EIP55 computes the checksummed hex address string from a 20-byte raw
// address.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20) // lower-case

	// checksum uses keccak of the lower-case hex representation
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range hexaddr {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
			continue
		}
		// nibble i of the hash decides the case of hex digit i
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			b.WriteRune(c - 32) // upper-case
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}
