package account

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
)

// Domain separators keep account-identifier and invoice-subaccount hashes
// from ever colliding; the leading byte is the separator's length.
const (
	accountIDDomain = "\x0Aaccount-id"
	invoiceIDDomain = "\x0Ainvoice-id"
)

// SubaccountLength is the fixed size of a ledger subaccount.
const SubaccountLength = 32

// ErrInvalidIdentifier is wrapped by all identifier parse failures.
var ErrInvalidIdentifier = errors.New("invalid account identifier")

// Subaccount selects one account among those a principal controls on the
// ledger.
type Subaccount [SubaccountLength]byte

// Identifier is a ledger account address: a 4-byte big-endian CRC32 followed
// by the SHA-224 of the domain-separated owner and subaccount.
type Identifier [32]byte

// NewIdentifier derives the account identifier a principal holds for a
// subaccount.
func NewIdentifier(owner Principal, sub Subaccount) Identifier {
	h := sha256.New224()
	h.Write([]byte(accountIDDomain))
	h.Write(owner.raw)
	h.Write(sub[:])
	return withChecksum(h.Sum(nil))
}

// String renders the 64-character lowercase hex form.
func (i Identifier) String() string {
	return hex.EncodeToString(i[:])
}

// IdentifierFromText parses the hex text form. Parsing is case-insensitive
// and validates the embedded checksum.
func IdentifierFromText(text string) (Identifier, error) {
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	return IdentifierFromBytes(decoded)
}

// IdentifierFromBytes validates the 32-byte binary form.
func IdentifierFromBytes(raw []byte) (Identifier, error) {
	if len(raw) != 32 {
		return Identifier{}, fmt.Errorf("%w: got %d bytes, want 32", ErrInvalidIdentifier, len(raw))
	}
	checksum := binary.BigEndian.Uint32(raw[:4])
	if checksum != crc32.ChecksumIEEE(raw[4:]) {
		return Identifier{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidIdentifier)
	}
	var ident Identifier
	copy(ident[:], raw)
	return ident, nil
}

// InvoiceSubaccount derives the deposit subaccount for one invoice. The id
// and creator feed a domain-separated hash, so each invoice watches an
// account no other invoice or caller can be assigned.
func InvoiceSubaccount(creator Principal, invoiceID uint64) Subaccount {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], invoiceID)

	h := sha256.New224()
	h.Write([]byte(invoiceIDDomain))
	h.Write(id[:])
	h.Write(creator.raw)

	var sub Subaccount
	ident := withChecksum(h.Sum(nil))
	copy(sub[:], ident[:])
	return sub
}

// PrincipalSubaccount derives the subaccount holding a caller's own funds
// with the service: the principal's length, its raw bytes, zero padding.
func PrincipalSubaccount(p Principal) Subaccount {
	var sub Subaccount
	sub[0] = byte(len(p.raw))
	copy(sub[1:], p.raw)
	return sub
}

func withChecksum(hash []byte) Identifier {
	var ident Identifier
	binary.BigEndian.PutUint32(ident[:4], crc32.ChecksumIEEE(hash))
	copy(ident[4:], hash)
	return ident
}
