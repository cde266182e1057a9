package internal

import (
	"strconv"
	"testing"
)

func TestNewCodeRange(t *testing.T) {
	for i := 0; i < 2000; i++ {
		code, err := NewCode(4)
		if err != nil {
			t.Fatalf("NewCode failed: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("expected 4 digits, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("non-numeric code %q: %v", code, err)
		}
		if n < 1000 || n > 9999 {
			t.Fatalf("code %d outside inclusive range 1000–9999", n)
		}
	}
}

func TestNewCodeDigitsBounds(t *testing.T) {
	if _, err := NewCode(3); err == nil {
		t.Fatal("expected error for 3 digits")
	}
	if _, err := NewCode(11); err == nil {
		t.Fatal("expected error for 11 digits")
	}
	code, err := NewCode(6)
	if err != nil {
		t.Fatalf("NewCode(6) failed: %v", err)
	}
	if len(code) != 6 || code[0] == '0' {
		t.Fatalf("expected 6-digit code with non-zero lead, got %q", code)
	}
}
