package verify

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddress_KnownVector(t *testing.T) {
	// The well-known XRPL root account keypair.
	pub, err := hex.DecodeString("0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020")
	require.NoError(t, err)

	addr, err := DeriveAddress(pub)
	require.NoError(t, err)
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)
}

func TestDeriveAddress_RejectsBadLength(t *testing.T) {
	_, err := DeriveAddress([]byte{0x02, 0x03})
	require.Error(t, err)
}

func TestVerifyTxBlob_Ed25519(t *testing.T) {
	blob, addr, err := NewSignedEd25519Blob()
	require.NoError(t, err)

	v := NewVerifier(nil, nil)
	result, err := v.VerifyTxBlob(blob)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, addr, result.SignerAddress)
}

func TestVerifyTxBlob_Secp256k1(t *testing.T) {
	blob, addr, err := NewSignedSecp256k1Blob()
	require.NoError(t, err)

	v := NewVerifier(nil, nil)
	result, err := v.VerifyTxBlob(blob)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, addr, result.SignerAddress)
}

func TestVerifyTxBlob_Tampered(t *testing.T) {
	blob, _, err := NewSignedEd25519Blob()
	require.NoError(t, err)

	v := NewVerifier(nil, nil)
	result, err := v.VerifyTxBlob(TamperBlob(blob))
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.False(t, result.Valid)
	assert.Empty(t, result.SignerAddress)
}

func TestVerifyTxBlob_Garbage(t *testing.T) {
	v := NewVerifier(nil, nil)

	for _, input := range []string{"", "zzzz", "deadbeef", "12"} {
		result, err := v.VerifyTxBlob(input)
		require.ErrorIs(t, err, ErrInvalidSignature, "input %q", input)
		assert.False(t, result.Valid, "input %q", input)
	}
}

func TestDecodeTxBlob_ExtractsFields(t *testing.T) {
	blob, _, err := NewSignedEd25519Blob()
	require.NoError(t, err)

	tx, err := DecodeTxBlob(blob)
	require.NoError(t, err)

	assert.Len(t, tx.SigningPubKey, 33)
	assert.EqualValues(t, 0xED, tx.SigningPubKey[0])
	assert.Len(t, tx.TxnSignature, 64)
	assert.Len(t, tx.Account, 20)

	// The signing data must be the blob minus the signature field, with
	// the hash prefix in front.
	raw, err := hex.DecodeString(blob)
	require.NoError(t, err)
	assert.Equal(t, len(raw)-2-len(tx.TxnSignature)+len(txSigPrefix), len(tx.SigningData))
	assert.Equal(t, txSigPrefix, tx.SigningData[:4])
}

func TestDecodeTxBlob_RequiresSignatureFields(t *testing.T) {
	// A blob with only a TransactionType field has neither a public key
	// nor a signature.
	_, err := DecodeTxBlob("120000")
	require.Error(t, err)
}

func TestDecodeTxBlob_TruncatedValue(t *testing.T) {
	// Blob field claiming 32 bytes with only 2 present.
	_, err := DecodeTxBlob("7320abcd")
	require.Error(t, err)
}

func TestReadVLHeader_TwoByteLength(t *testing.T) {
	// Length 300: first byte 193 + (300-193)/256 = 193, remainder byte.
	// 300 = 193 + (b1-193)*256 + b2 => b1=193, b2=107.
	raw := make([]byte, 2+300)
	raw[0] = 193
	raw[1] = 107
	start, end, err := readVLHeader(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, start)
	assert.Equal(t, 302, end)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret")
	require.NoError(t, err)

	token, err := issuer.Issue("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	addr, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-one")
	require.NoError(t, err)
	other, err := NewTokenIssuer("secret-two")
	require.NoError(t, err)

	token, err := issuer.Issue("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	require.NoError(t, err)

	_, err = other.Parse(token)
	require.Error(t, err)
}

func TestTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("")
	require.Error(t, err)
}
