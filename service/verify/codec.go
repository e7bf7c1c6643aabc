package verify

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Minimal decoder for the XRPL canonical binary transaction format. It walks
// the top-level fields of a signed transaction blob, extracts the fields
// needed for signature verification, and reconstructs the signing data (the
// serialization with the TxnSignature field removed, prefixed with the
// single-signature hash prefix).

// txSigPrefix is the network hash prefix for single-signed transactions
// ("STX\0").
var txSigPrefix = []byte{0x53, 0x54, 0x58, 0x00}

// Serial type codes used by the field walker.
const (
	stUInt16    = 1
	stUInt32    = 2
	stUInt64    = 3
	stHash128   = 4
	stHash256   = 5
	stAmount    = 6
	stBlob      = 7
	stAccountID = 8
	stObject    = 14
	stArray     = 15
	stUInt8     = 16
	stHash160   = 17
	stPathSet   = 18
	stVector256 = 19
)

// Field ids (type, field) for the fields this decoder extracts.
var (
	fieldTransactionType = fieldID{stUInt16, 2}
	fieldAccount         = fieldID{stAccountID, 1}
	fieldSigningPubKey   = fieldID{stBlob, 3}
	fieldTxnSignature    = fieldID{stBlob, 4}
)

type fieldID struct {
	typeCode  int
	fieldCode int
}

// DecodedTx holds the verification-relevant fields of a signed transaction.
type DecodedTx struct {
	TransactionType uint16
	Account         []byte // 20-byte account id from the Account field
	SigningPubKey   []byte // 33-byte compressed public key
	TxnSignature    []byte // DER (secp256k1) or 64-byte raw (ed25519)
	SigningData     []byte // prefix + serialization minus TxnSignature
}

// DecodeTxBlob parses a hex-encoded signed transaction blob.
func DecodeTxBlob(blobHex string) (*DecodedTx, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(blobHex))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty transaction blob")
	}

	tx := &DecodedTx{}
	var sigStart, sigEnd int

	pos := 0
	for pos < len(raw) {
		fieldStart := pos
		id, next, err := readFieldHeader(raw, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		valStart := pos
		end, err := skipFieldValue(raw, pos, id.typeCode)
		if err != nil {
			return nil, err
		}
		pos = end

		switch id {
		case fieldTransactionType:
			tx.TransactionType = binary.BigEndian.Uint16(raw[valStart:end])
		case fieldAccount:
			v, err := readVL(raw, valStart)
			if err != nil {
				return nil, err
			}
			tx.Account = v
		case fieldSigningPubKey:
			v, err := readVL(raw, valStart)
			if err != nil {
				return nil, err
			}
			tx.SigningPubKey = v
		case fieldTxnSignature:
			v, err := readVL(raw, valStart)
			if err != nil {
				return nil, err
			}
			tx.TxnSignature = v
			sigStart, sigEnd = fieldStart, end
		}
	}

	if len(tx.SigningPubKey) == 0 {
		return nil, fmt.Errorf("transaction has no SigningPubKey (multi-signed transactions are not supported)")
	}
	if len(tx.TxnSignature) == 0 {
		return nil, fmt.Errorf("transaction has no TxnSignature")
	}

	// Signing data: hash prefix plus the serialization with the signature
	// field spliced out. Canonical field order is preserved by splicing.
	data := make([]byte, 0, len(txSigPrefix)+len(raw)-(sigEnd-sigStart))
	data = append(data, txSigPrefix...)
	data = append(data, raw[:sigStart]...)
	data = append(data, raw[sigEnd:]...)
	tx.SigningData = data

	return tx, nil
}

// readFieldHeader decodes a field id starting at pos and returns the id and
// the offset of the field's value.
func readFieldHeader(raw []byte, pos int) (fieldID, int, error) {
	if pos >= len(raw) {
		return fieldID{}, 0, fmt.Errorf("truncated field header at offset %d", pos)
	}

	b := raw[pos]
	pos++
	typeCode := int(b >> 4)
	fieldCode := int(b & 0x0F)

	if typeCode == 0 {
		if pos >= len(raw) {
			return fieldID{}, 0, fmt.Errorf("truncated extended type code")
		}
		typeCode = int(raw[pos])
		pos++
	}
	if fieldCode == 0 {
		if pos >= len(raw) {
			return fieldID{}, 0, fmt.Errorf("truncated extended field code")
		}
		fieldCode = int(raw[pos])
		pos++
	}

	return fieldID{typeCode, fieldCode}, pos, nil
}

// skipFieldValue returns the offset just past the value of a field of the
// given serial type starting at pos.
func skipFieldValue(raw []byte, pos, typeCode int) (int, error) {
	fixed := func(n int) (int, error) {
		if pos+n > len(raw) {
			return 0, fmt.Errorf("truncated field value at offset %d", pos)
		}
		return pos + n, nil
	}

	switch typeCode {
	case stUInt8:
		return fixed(1)
	case stUInt16:
		return fixed(2)
	case stUInt32:
		return fixed(4)
	case stUInt64:
		return fixed(8)
	case stHash128:
		return fixed(16)
	case stHash160:
		return fixed(20)
	case stHash256:
		return fixed(32)
	case stAmount:
		if pos >= len(raw) {
			return 0, fmt.Errorf("truncated amount at offset %d", pos)
		}
		// Issued-currency amounts set the high bit and span 48 bytes;
		// native drops are 8 bytes.
		if raw[pos]&0x80 != 0 {
			return fixed(48)
		}
		return fixed(8)
	case stBlob, stAccountID, stVector256:
		_, n, err := readVLHeader(raw, pos)
		if err != nil {
			return 0, err
		}
		return n, nil
	case stObject:
		return skipObject(raw, pos, 0xE1)
	case stArray:
		return skipArray(raw, pos)
	case stPathSet:
		return skipPathSet(raw, pos)
	default:
		return 0, fmt.Errorf("unsupported serial type %d at offset %d", typeCode, pos)
	}
}

// skipObject walks nested fields until the given end marker.
func skipObject(raw []byte, pos int, endMarker byte) (int, error) {
	for pos < len(raw) {
		if raw[pos] == endMarker {
			return pos + 1, nil
		}
		id, next, err := readFieldHeader(raw, pos)
		if err != nil {
			return 0, err
		}
		pos, err = skipFieldValue(raw, next, id.typeCode)
		if err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("unterminated object")
}

// skipArray walks array members (each an inner object) until 0xF1.
func skipArray(raw []byte, pos int) (int, error) {
	for pos < len(raw) {
		if raw[pos] == 0xF1 {
			return pos + 1, nil
		}
		// Each member starts with an object field header followed by the
		// member's fields, terminated by 0xE1.
		_, next, err := readFieldHeader(raw, pos)
		if err != nil {
			return 0, err
		}
		pos, err = skipObject(raw, next, 0xE1)
		if err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("unterminated array")
}

// skipPathSet walks payment path elements until the 0x00 end byte.
func skipPathSet(raw []byte, pos int) (int, error) {
	for pos < len(raw) {
		t := raw[pos]
		pos++
		if t == 0x00 {
			return pos, nil
		}
		if t == 0xFF {
			// Path boundary, next element follows.
			continue
		}
		n := 0
		if t&0x01 != 0 {
			n += 20 // account
		}
		if t&0x10 != 0 {
			n += 20 // currency
		}
		if t&0x20 != 0 {
			n += 20 // issuer
		}
		if pos+n > len(raw) {
			return 0, fmt.Errorf("truncated path element at offset %d", pos)
		}
		pos += n
	}
	return 0, fmt.Errorf("unterminated path set")
}

// readVLHeader decodes a variable-length prefix at pos and returns the value
// offset and the offset just past the value.
func readVLHeader(raw []byte, pos int) (valueStart, valueEnd int, err error) {
	if pos >= len(raw) {
		return 0, 0, fmt.Errorf("truncated length prefix at offset %d", pos)
	}

	b1 := int(raw[pos])
	var length, header int
	switch {
	case b1 <= 192:
		length = b1
		header = 1
	case b1 <= 240:
		if pos+1 >= len(raw) {
			return 0, 0, fmt.Errorf("truncated length prefix at offset %d", pos)
		}
		length = 193 + (b1-193)*256 + int(raw[pos+1])
		header = 2
	case b1 <= 254:
		if pos+2 >= len(raw) {
			return 0, 0, fmt.Errorf("truncated length prefix at offset %d", pos)
		}
		length = 12481 + (b1-241)*65536 + int(raw[pos+1])*256 + int(raw[pos+2])
		header = 3
	default:
		return 0, 0, fmt.Errorf("invalid length prefix %d at offset %d", b1, pos)
	}

	valueStart = pos + header
	valueEnd = valueStart + length
	if valueEnd > len(raw) {
		return 0, 0, fmt.Errorf("length prefix overruns blob at offset %d", pos)
	}
	return valueStart, valueEnd, nil
}

// readVL decodes a variable-length value at pos and returns a copy of it.
func readVL(raw []byte, pos int) ([]byte, error) {
	start, end, err := readVLHeader(raw, pos)
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, raw[start:end])
	return out, nil
}
