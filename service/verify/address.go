package verify

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by the XRPL address scheme
)

// xrplAlphabet is the base58 dictionary used for XRPL classic addresses. It
// differs from the Bitcoin alphabet, so a generic base58 encoder cannot be
// used as-is.
const xrplAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// accountIDFromPubKey computes the 20-byte account id for a compressed
// public key: RIPEMD160(SHA256(pubkey)).
func accountIDFromPubKey(pubKey []byte) []byte {
	sha := sha256.Sum256(pubKey)
	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}

// DeriveAddress computes the classic XRPL address (r...) for a 33-byte
// compressed public key.
func DeriveAddress(pubKey []byte) (string, error) {
	if len(pubKey) != 33 {
		return "", fmt.Errorf("public key must be 33 bytes, got %d", len(pubKey))
	}
	return encodeAccountID(accountIDFromPubKey(pubKey)), nil
}

// encodeAccountID applies the XRPL base58check encoding (version byte 0x00,
// 4-byte double-SHA256 checksum) to a 20-byte account id.
func encodeAccountID(accountID []byte) string {
	payload := make([]byte, 0, 25)
	payload = append(payload, 0x00)
	payload = append(payload, accountID...)

	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	payload = append(payload, second[:4]...)

	return encodeBase58(payload)
}

// encodeBase58 encodes bytes with the XRPL alphabet.
func encodeBase58(input []byte) string {
	// Count leading zero bytes; each maps to the zero-value character.
	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	// Repeated division by 58 over a big-endian byte accumulator.
	digits := make([]byte, 0, len(input)*2)
	num := make([]byte, len(input))
	copy(num, input)

	for len(num) > zeros {
		rem := 0
		allZero := true
		for i := zeros; i < len(num); i++ {
			cur := rem*256 + int(num[i])
			num[i] = byte(cur / 58)
			rem = cur % 58
			if num[i] != 0 {
				allZero = false
			}
		}
		digits = append(digits, byte(rem))
		if allZero {
			break
		}
	}

	out := make([]byte, 0, zeros+len(digits))
	for i := 0; i < zeros; i++ {
		out = append(out, xrplAlphabet[0])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, xrplAlphabet[digits[i]])
	}
	return string(out)
}
