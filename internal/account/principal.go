// Package account implements the identity and account formats the service
// settles against: opaque caller principals and the 32-byte checksum-guarded
// account identifiers deposits are addressed to.
package account

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// MaxPrincipalLength bounds the raw form; self-authenticating principals are
// 29 bytes.
const MaxPrincipalLength = 29

// principalEncoding is unpadded base32 over a lowercase alphabet.
var principalEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Principal is an opaque caller identity. The zero value is the anonymous
// empty principal, whose text form is "aaaaa-aa".
type Principal struct {
	raw []byte
}

// PrincipalFromRaw constructs a principal from its raw bytes.
func PrincipalFromRaw(raw []byte) (Principal, error) {
	if len(raw) > MaxPrincipalLength {
		return Principal{}, fmt.Errorf("principal raw form is %d bytes, max is %d", len(raw), MaxPrincipalLength)
	}
	return Principal{raw: append([]byte(nil), raw...)}, nil
}

// PrincipalFromText parses the dash-grouped base32 text form. Parsing is
// case-insensitive and validates the embedded CRC32 checksum.
func PrincipalFromText(text string) (Principal, error) {
	compact := strings.ReplaceAll(strings.ToLower(text), "-", "")
	decoded, err := principalEncoding.DecodeString(compact)
	if err != nil {
		return Principal{}, fmt.Errorf("malformed principal %q: %w", text, err)
	}
	if len(decoded) < 4 {
		return Principal{}, fmt.Errorf("malformed principal %q: too short", text)
	}

	raw := decoded[4:]
	if len(raw) > MaxPrincipalLength {
		return Principal{}, fmt.Errorf("principal %q payload is %d bytes, max is %d", text, len(raw), MaxPrincipalLength)
	}
	checksum := binary.BigEndian.Uint32(decoded[:4])
	if checksum != crc32.ChecksumIEEE(raw) {
		return Principal{}, fmt.Errorf("principal %q failed checksum validation", text)
	}
	return Principal{raw: append([]byte(nil), raw...)}, nil
}

// MustPrincipal parses the text form and panics on failure. For use with
// values already validated, such as checked configuration.
func MustPrincipal(text string) Principal {
	p, err := PrincipalFromText(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Raw returns the principal's raw bytes.
func (p Principal) Raw() []byte {
	return append([]byte(nil), p.raw...)
}

// Equal reports whether two principals share the same raw form.
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p.raw, other.raw)
}

// String renders the canonical text form: a big-endian CRC32 of the raw
// bytes, then the raw bytes, base32 encoded and dash-grouped in fives.
func (p Principal) String() string {
	payload := make([]byte, 4+len(p.raw))
	binary.BigEndian.PutUint32(payload, crc32.ChecksumIEEE(p.raw))
	copy(payload[4:], p.raw)

	encoded := principalEncoding.EncodeToString(payload)

	var b strings.Builder
	for i, r := range encoded {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
