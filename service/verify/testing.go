package verify

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Test support: builders producing canonically serialized, validly signed
// transaction blobs without a live wallet. Used by this package's tests and
// by the HTTP handler tests.

// txTypeSignIn is the pseudo transaction type the wallet uses for sign-in
// payloads.
const txTypeSignIn uint16 = 0x0000

// encodeVL prepends a variable-length prefix. Test fixtures stay under the
// single-byte range.
func encodeVL(value []byte) []byte {
	if len(value) > 192 {
		panic(fmt.Sprintf("test fixture value too long: %d", len(value)))
	}
	return append([]byte{byte(len(value))}, value...)
}

// serializeUnsigned emits the canonical field sequence for a minimal
// transaction: TransactionType, SigningPubKey, Account.
func serializeUnsigned(txType uint16, pubKey, accountID []byte) []byte {
	out := make([]byte, 0, 64)

	// TransactionType (UInt16, field 2)
	out = append(out, 0x12)
	out = binary.BigEndian.AppendUint16(out, txType)

	// SigningPubKey (Blob, field 3)
	out = append(out, 0x73)
	out = append(out, encodeVL(pubKey)...)

	// Account (AccountID, field 1)
	out = append(out, 0x81)
	out = append(out, encodeVL(accountID)...)

	return out
}

// assemble splices the TxnSignature field into its canonical slot (between
// SigningPubKey and Account).
func assemble(txType uint16, pubKey, signature, accountID []byte) []byte {
	out := make([]byte, 0, 128)

	out = append(out, 0x12)
	out = binary.BigEndian.AppendUint16(out, txType)

	out = append(out, 0x73)
	out = append(out, encodeVL(pubKey)...)

	// TxnSignature (Blob, field 4)
	out = append(out, 0x74)
	out = append(out, encodeVL(signature)...)

	out = append(out, 0x81)
	out = append(out, encodeVL(accountID)...)

	return out
}

// NewSignedEd25519Blob generates an ed25519 keypair, signs a minimal sign-in
// transaction with it, and returns the hex blob plus the signer's classic
// address.
func NewSignedEd25519Blob() (blobHex, address string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}

	xrplPub := append([]byte{0xED}, pub...)
	accountID := accountIDFromPubKey(xrplPub)

	signingData := append(append([]byte{}, txSigPrefix...), serializeUnsigned(txTypeSignIn, xrplPub, accountID)...)
	sig := ed25519.Sign(priv, signingData)

	blob := assemble(txTypeSignIn, xrplPub, sig, accountID)
	addr, err := DeriveAddress(xrplPub)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(blob), addr, nil
}

// NewSignedSecp256k1Blob generates a secp256k1 keypair, signs a minimal
// sign-in transaction with it, and returns the hex blob plus the signer's
// classic address.
func NewSignedSecp256k1Blob() (blobHex, address string, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", err
	}
	pub := priv.PubKey().SerializeCompressed()
	accountID := accountIDFromPubKey(pub)

	signingData := append(append([]byte{}, txSigPrefix...), serializeUnsigned(txTypeSignIn, pub, accountID)...)
	sig := btcecdsa.Sign(priv, sha512Half(signingData))

	blob := assemble(txTypeSignIn, pub, sig.Serialize(), accountID)
	addr, err := DeriveAddress(pub)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(blob), addr, nil
}

// TamperBlob flips one bit inside the account field at the end of a blob,
// invalidating the signature while keeping the structure parseable.
func TamperBlob(blobHex string) string {
	raw, err := hex.DecodeString(blobHex)
	if err != nil || len(raw) == 0 {
		return blobHex
	}
	raw[len(raw)-1] ^= 0x01
	return hex.EncodeToString(raw)
}
