package receiveragent

import (
	"testing"

	"github.com/encryptogroup/PrivMail/internal/privmail/config"
)

func TestNormalizeCRLF(t *testing.T) {
	in := []byte("Subject: hi\r\nfoo\r\n\r\nbody line\r\n")
	out := normalizeCRLF(in)
	want := "Subject: hi\nfoo\n\nbody line\n"
	if string(out) != want {
		t.Errorf("normalizeCRLF = %q, want %q", out, want)
	}
}

func TestSplitMessage(t *testing.T) {
	raw := []byte("Subject: greetings\r\nFrom: a@example.com\r\n\r\nhello\r\nworld\r\n")
	subject, body, err := splitMessage(raw)
	if err != nil {
		t.Fatalf("splitMessage: %v", err)
	}
	if subject != "greetings" {
		t.Errorf("subject = %q, want %q", subject, "greetings")
	}
	if body != "hello\nworld\n" {
		t.Errorf("body = %q", body)
	}
}

func TestFetchAccountDialFailure(t *testing.T) {
	_, err := FetchAccount(config.Account{Addr: "127.0.0.1:0", Username: "u", Password: "p"})
	if err == nil {
		t.Fatal("expected a dial error for an unreachable IMAP address")
	}
}

func TestGatherStatsPropagatesFetchError(t *testing.T) {
	accounts := []config.Account{{Addr: "127.0.0.1:0", Username: "u", Password: "p"}}
	_, stats, err := GatherStats(accounts, t.Logf)
	if err == nil {
		t.Fatal("expected an error gathering from an unreachable account")
	}
	if stats.Combine != 0 || stats.Reconstruct != 0 {
		t.Errorf("stats = %+v, want only ConnectFetch touched before the failure", stats)
	}
}
