package verify

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/abroadly/xamanlink/service/metrics"
)

// ErrInvalidSignature indicates the transaction's signature does not verify
// against its embedded public key. It is never retried; the signature will
// not become valid.
var ErrInvalidSignature = errors.New("invalid signature")

// Result is the outcome of verifying a signed transaction blob.
type Result struct {
	Valid         bool
	SignerAddress string
}

// Verifier checks signed-transaction blobs and attributes them to a signer
// address. It is the sole trust boundary: no account is treated as connected
// without passing through it.
type Verifier struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewVerifier creates a Verifier. If m is nil, no metrics are recorded.
func NewVerifier(m *metrics.Metrics, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Verifier{metrics: m, logger: logger}
}

// VerifyTxBlob decodes a hex-encoded signed transaction and verifies its
// signature against the embedded public key. On success the signer's classic
// address is derived from the public key, never read from untrusted fields.
//
// A malformed blob is reported as a verification failure rather than an
// internal error: the caller handed us bytes that do not attest anything.
func (v *Verifier) VerifyTxBlob(blobHex string) (*Result, error) {
	tx, err := DecodeTxBlob(blobHex)
	if err != nil {
		v.record("invalid")
		v.logger.Debug("failed to decode transaction blob", "error", err)
		return &Result{Valid: false}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ok, err := verifySignature(tx)
	if err != nil || !ok {
		v.record("invalid")
		v.logger.Debug("signature verification failed",
			"tx_type", tx.TransactionType,
			"error", err,
		)
		return &Result{Valid: false}, ErrInvalidSignature
	}

	addr, err := DeriveAddress(tx.SigningPubKey)
	if err != nil {
		v.record("invalid")
		return &Result{Valid: false}, ErrInvalidSignature
	}

	// When an Account field is present it must match the signing key's
	// derived account; a mismatch means a valid signature over someone
	// else's transaction.
	if len(tx.Account) == 20 && !bytes.Equal(tx.Account, accountIDFromPubKey(tx.SigningPubKey)) {
		v.record("invalid")
		v.logger.Debug("signer does not match transaction account", "signer", addr)
		return &Result{Valid: false}, ErrInvalidSignature
	}

	v.record("valid")
	v.logger.Debug("signature verified", "signer", addr, "tx_type", tx.TransactionType)
	return &Result{Valid: true, SignerAddress: addr}, nil
}

// verifySignature dispatches on the key type encoded in the public key's
// first byte: 0xED for ed25519, 0x02/0x03 for compressed secp256k1.
func verifySignature(tx *DecodedTx) (bool, error) {
	switch {
	case len(tx.SigningPubKey) == 33 && tx.SigningPubKey[0] == 0xED:
		// ed25519 signs the raw signing data; no external digest.
		if len(tx.TxnSignature) != ed25519.SignatureSize {
			return false, fmt.Errorf("ed25519 signature must be %d bytes", ed25519.SignatureSize)
		}
		pub := ed25519.PublicKey(tx.SigningPubKey[1:])
		return ed25519.Verify(pub, tx.SigningData, tx.TxnSignature), nil

	case len(tx.SigningPubKey) == 33 && (tx.SigningPubKey[0] == 0x02 || tx.SigningPubKey[0] == 0x03):
		pub, err := btcec.ParsePubKey(tx.SigningPubKey)
		if err != nil {
			return false, fmt.Errorf("invalid secp256k1 public key: %w", err)
		}
		sig, err := btcecdsa.ParseDERSignature(tx.TxnSignature)
		if err != nil {
			return false, fmt.Errorf("invalid DER signature: %w", err)
		}
		digest := sha512Half(tx.SigningData)
		return sig.Verify(digest, pub), nil

	default:
		return false, fmt.Errorf("unsupported public key format")
	}
}

// sha512Half is the XRPL hash: the first 256 bits of SHA-512.
func sha512Half(data []byte) []byte {
	h := sha512.Sum512(data)
	return h[:32]
}

func (v *Verifier) record(result string) {
	if v.metrics != nil {
		v.metrics.RecordVerification(result)
	}
}
