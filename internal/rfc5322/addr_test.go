package rfc5322

import (
	"testing"

	"github.com/encryptogroup/PrivMail/internal/email"
)

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("Alice Example <alice@example.com>")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if a.Name != "Alice Example" || a.Addr != "alice@example.com" {
		t.Errorf("got %+v", a)
	}
}

func TestParseAddressBare(t *testing.T) {
	a, err := ParseAddress("bob@example.com")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if a.Name != "" || a.Addr != "bob@example.com" {
		t.Errorf("got %+v", a)
	}
}

func TestParseAddressList(t *testing.T) {
	list, err := ParseAddressList("alice@example.com, Bob <bob@example.com>")
	if err != nil {
		t.Fatalf("ParseAddressList: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d addresses, want 2", len(list))
	}
	if list[0].Addr != "alice@example.com" || list[1].Addr != "bob@example.com" {
		t.Errorf("got %+v", list)
	}
}

func TestFormatAddress(t *testing.T) {
	got := FormatAddress(&email.Address{Name: "Alice", Addr: "alice@example.com"})
	want := `"Alice" <alice@example.com>`
	if got != want {
		t.Errorf("FormatAddress = %q, want %q", got, want)
	}
}
