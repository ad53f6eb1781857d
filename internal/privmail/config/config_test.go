package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSenderConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sender.yaml")
	content := "destinations:\n  - name: alpha\n    addr: 127.0.0.1:2525\n  - name: beta\n    addr: 127.0.0.1:2526\nrelay_plain: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadSenderConfig(path)
	if err != nil {
		t.Fatalf("LoadSenderConfig: %v", err)
	}
	if len(cfg.Destinations) != 2 {
		t.Fatalf("got %d destinations, want 2", len(cfg.Destinations))
	}
	if cfg.Destinations[0].Name != "alpha" || cfg.Destinations[0].Addr != "127.0.0.1:2525" {
		t.Errorf("got %+v", cfg.Destinations[0])
	}
	if !cfg.RelayPlain {
		t.Error("RelayPlain = false, want true")
	}
}

func TestLoadSenderConfigRejectsTooFewDestinations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sender.yaml")
	if err := os.WriteFile(path, []byte("destinations:\n  - name: alpha\n    addr: 127.0.0.1:2525\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadSenderConfig(path); err == nil {
		t.Fatal("expected an error for fewer than 2 destinations")
	}
}

func TestLoadReceiverConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receiver.yaml")
	content := "accounts:\n  - addr: imap.alpha.example:993\n    username: alice\n    password: secret\n    mailbox: INBOX\n  - addr: imap.beta.example:993\n    username: alice\n    password: secret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		t.Fatalf("LoadReceiverConfig: %v", err)
	}
	if len(cfg.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(cfg.Accounts))
	}
	if cfg.Accounts[0].Mailbox != "INBOX" {
		t.Errorf("got mailbox %q, want INBOX", cfg.Accounts[0].Mailbox)
	}
	if cfg.Accounts[1].Mailbox != "" {
		t.Errorf("got mailbox %q, want empty (defaults to INBOX downstream)", cfg.Accounts[1].Mailbox)
	}
}

func TestLoadReceiverConfigRejectsTooFewAccounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receiver.yaml")
	if err := os.WriteFile(path, []byte("accounts:\n  - addr: imap.alpha.example:993\n    username: alice\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadReceiverConfig(path); err == nil {
		t.Fatal("expected an error for fewer than 2 accounts")
	}
}

func TestSenderConfigInScheme(t *testing.T) {
	cfg := SenderConfig{KnownRecipients: []string{"alice@example.com", "@partner.example"}}

	cases := []struct {
		rcpt string
		want bool
	}{
		{"alice@example.com", true},
		{"bob@partner.example", true},
		{"carol@other.example", false},
	}
	for _, c := range cases {
		if got := cfg.InScheme(c.rcpt); got != c.want {
			t.Errorf("InScheme(%q) = %v, want %v", c.rcpt, got, c.want)
		}
	}
}

func TestSenderConfigInSchemeEmptyMeansAll(t *testing.T) {
	var cfg SenderConfig
	if !cfg.InScheme("anyone@anywhere.example") {
		t.Error("InScheme with no KnownRecipients should accept every recipient")
	}
}

func TestCredentialsLookup(t *testing.T) {
	creds := Credentials{Entries: []Credential{
		{Username: "alice", PassHash: "hash1"},
		{Username: "bob", PassHash: "hash2"},
	}}
	if hash, ok := creds.Lookup("alice"); !ok || hash != "hash1" {
		t.Errorf("Lookup(alice) = (%q, %v), want (hash1, true)", hash, ok)
	}
	if _, ok := creds.Lookup("carol"); ok {
		t.Error("Lookup(carol) = true, want false")
	}
}
