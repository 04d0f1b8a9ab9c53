package apikey

import (
	"errors"
	"testing"

	"github.com/gameroom/backend/internal/errs"
)

func TestRoundTrip(t *testing.T) {
	k := New()

	s := k.String()
	if len(s) != 32 {
		t.Fatalf("formatted key has length %d, want 32: %q", len(s), s)
	}

	parsed, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", s, err)
	}
	if parsed != k {
		t.Errorf("round trip mismatch: %v != %v", parsed, k)
	}
	if parsed.Hash() != k.Hash() {
		t.Errorf("hash mismatch after round trip")
	}
}

func TestHashIsStable(t *testing.T) {
	k, err := Parse("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := k.Hash()
	if len(got) != 64 {
		t.Fatalf("hash has length %d, want 64", len(got))
	}
	if got != k.Hash() {
		t.Errorf("hash is not deterministic")
	}

	other, _ := Parse("ffffffffffffffffffffffffffffffff")
	if other.Hash() == got {
		t.Errorf("distinct keys hash identically")
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"hello",
		"0123456789abcdef0123456789abcde",   // too short
		"0123456789abcdef0123456789abcdef0", // too long
		"0123456789abcdef0123456789abcdeg",  // not hex
	} {
		if _, err := Parse(in); !errors.Is(err, errs.ErrMalformedApiKey) {
			t.Errorf("Parse(%q) = %v, want ErrMalformedApiKey", in, err)
		}
	}
}

func TestNewKeysDiffer(t *testing.T) {
	if New() == New() {
		t.Fatal("two generated keys are identical")
	}
}
