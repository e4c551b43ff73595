package account

import (
	"strings"
	"testing"
)

func testPrincipal(t *testing.T, raw ...byte) Principal {
	t.Helper()
	p, err := PrincipalFromRaw(raw)
	if err != nil {
		t.Fatalf("PrincipalFromRaw() error = %v", err)
	}
	return p
}

func TestNewIdentifier_Deterministic(t *testing.T) {
	owner := testPrincipal(t, 0x01, 0x02)
	sub := InvoiceSubaccount(testPrincipal(t, 0x09), 42)

	first := NewIdentifier(owner, sub)
	second := NewIdentifier(owner, sub)
	if first != second {
		t.Errorf("identical inputs derived different identifiers: %s vs %s", first, second)
	}
}

func TestIdentifier_TextRoundTrip(t *testing.T) {
	ident := NewIdentifier(testPrincipal(t, 0x01), Subaccount{})

	text := ident.String()
	if len(text) != 64 {
		t.Fatalf("String() length = %d, want 64 hex characters", len(text))
	}
	if text != strings.ToLower(text) {
		t.Errorf("String() is not lowercase: %q", text)
	}

	parsed, err := IdentifierFromText(text)
	if err != nil {
		t.Fatalf("IdentifierFromText() error = %v", err)
	}
	if parsed != ident {
		t.Errorf("round trip changed identifier")
	}

	// Hex equality is case-insensitive.
	parsed, err = IdentifierFromText(strings.ToUpper(text))
	if err != nil {
		t.Fatalf("IdentifierFromText(upper) error = %v", err)
	}
	if parsed != ident {
		t.Errorf("uppercase form parsed to different identifier")
	}
}

func TestIdentifierFromText_RejectsBadChecksum(t *testing.T) {
	ident := NewIdentifier(testPrincipal(t, 0x01), Subaccount{})
	text := ident.String()

	replacement := byte('0')
	if text[0] == '0' {
		replacement = '1'
	}
	mutated := string(replacement) + text[1:]

	if _, err := IdentifierFromText(mutated); err == nil {
		t.Errorf("IdentifierFromText(%q) accepted a corrupted identifier", mutated)
	}
}

func TestIdentifierFromText_RejectsMalformed(t *testing.T) {
	tests := []string{"", "zz", "abcd", strings.Repeat("ab", 31)}
	for _, text := range tests {
		if _, err := IdentifierFromText(text); err == nil {
			t.Errorf("IdentifierFromText(%q) should fail", text)
		}
	}
}

func TestInvoiceSubaccount_UniquePerInvoice(t *testing.T) {
	creator := testPrincipal(t, 0x07)
	other := testPrincipal(t, 0x08)

	seen := make(map[Subaccount]uint64)
	for id := uint64(1); id <= 100; id++ {
		sub := InvoiceSubaccount(creator, id)
		if prev, dup := seen[sub]; dup {
			t.Fatalf("invoice ids %d and %d derived the same subaccount", prev, id)
		}
		seen[sub] = id
	}

	if InvoiceSubaccount(creator, 1) == InvoiceSubaccount(other, 1) {
		t.Error("different creators derived the same subaccount for the same id")
	}
}

func TestPrincipalSubaccount_Layout(t *testing.T) {
	p := testPrincipal(t, 0xaa, 0xbb)
	sub := PrincipalSubaccount(p)

	if sub[0] != 2 {
		t.Errorf("length byte = %d, want 2", sub[0])
	}
	if sub[1] != 0xaa || sub[2] != 0xbb {
		t.Errorf("principal bytes not copied: % x", sub[:3])
	}
	for i := 3; i < SubaccountLength; i++ {
		if sub[i] != 0 {
			t.Errorf("padding byte %d = %d, want 0", i, sub[i])
		}
	}
}
