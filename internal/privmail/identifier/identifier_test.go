package identifier

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// TestMakeUIDShape is scenario from spec.md §8: |make_uid()| = 8 and every
// character is valid Base64.
func TestMakeUIDShape(t *testing.T) {
	for i := 0; i < 20; i++ {
		uid, err := MakeUID()
		if err != nil {
			t.Fatalf("MakeUID: %v", err)
		}
		if len(uid) != 8 {
			t.Fatalf("len(uid) = %d, want 8", len(uid))
		}
		if _, err := base64.StdEncoding.DecodeString(uid); err != nil {
			t.Fatalf("uid %q is not valid base64: %v", uid, err)
		}
	}
}

func TestMakeUIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		uid, err := MakeUID()
		if err != nil {
			t.Fatalf("MakeUID: %v", err)
		}
		if seen[uid] {
			t.Fatalf("MakeUID produced a repeat: %q", uid)
		}
		seen[uid] = true
	}
}

func TestSplitUID(t *testing.T) {
	uid, err := MakeUID()
	if err != nil {
		t.Fatalf("MakeUID: %v", err)
	}
	header := uid + "Subject: hello"
	gotUID, rest, err := SplitUID(header)
	if err != nil {
		t.Fatalf("SplitUID: %v", err)
	}
	if gotUID != uid {
		t.Errorf("uid = %q, want %q", gotUID, uid)
	}
	if rest != "Subject: hello" {
		t.Errorf("rest = %q, want %q", rest, "Subject: hello")
	}
}

func TestSplitUIDTooShort(t *testing.T) {
	_, _, err := SplitUID("abc")
	if !errors.Is(err, perr.ErrInvalidUIDHeader) {
		t.Errorf("got %v, want ErrInvalidUIDHeader", err)
	}
}

func TestSplitUIDInvalidBase64(t *testing.T) {
	_, _, err := SplitUID("!!!!!!!!rest of header")
	if !errors.Is(err, perr.ErrInvalidUIDHeader) {
		t.Errorf("got %v, want ErrInvalidUIDHeader", err)
	}
}
