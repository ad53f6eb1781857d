// Package config loads the YAML configuration the external collaborators
// (receiver daemon, sender proxy, CLIs) need: the destination address map
// and the local submission credentials. None of this belongs to the core;
// it is a thin, teacher-style wrapper around gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Destination is one of the N parties a sender proxy splits outgoing mail
// across.
type Destination struct {
	Name string `yaml:"name"`
	Addr string `yaml:"addr"` // host:port of the destination's SMTP listener
}

// SenderConfig is the sender proxy's configuration: the set of
// destinations to fan a share out to, which recipients are known to
// participate in the share scheme, and whether to relay mail to
// non-participating recipients unshared.
type SenderConfig struct {
	Destinations []Destination `yaml:"destinations"`
	RelayPlain   bool          `yaml:"relay_plain"`

	// KnownRecipients lists the addresses and/or @domains that receive
	// shared mail. A recipient matching neither is relayed unshared (when
	// RelayPlain is true) or rejected (when false). Empty means every
	// recipient is in-scheme.
	KnownRecipients []string `yaml:"known_recipients"`
}

// InScheme reports whether rcpt (an RFC-5322 addr-spec) participates in
// the share scheme, per KnownRecipients.
func (c SenderConfig) InScheme(rcpt string) bool {
	if len(c.KnownRecipients) == 0 {
		return true
	}
	at := strings.LastIndexByte(rcpt, '@')
	domain := ""
	if at >= 0 {
		domain = rcpt[at:] // includes the "@"
	}
	for _, known := range c.KnownRecipients {
		if known == rcpt || (strings.HasPrefix(known, "@") && known == domain) {
			return true
		}
	}
	return false
}

// LoadSenderConfig reads and validates a SenderConfig from path.
func LoadSenderConfig(path string) (SenderConfig, error) {
	var cfg SenderConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: LoadSenderConfig: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: LoadSenderConfig: %w", err)
	}
	if len(cfg.Destinations) < 2 {
		return cfg, fmt.Errorf("config: LoadSenderConfig: need at least 2 destinations, got %d", len(cfg.Destinations))
	}
	return cfg, nil
}

// Credential is one local-submission username/bcrypt-hash pair.
type Credential struct {
	Username string `yaml:"username"`
	PassHash string `yaml:"pass_hash"` // bcrypt hash, base64-free raw text
}

// Credentials is the receiver daemon's local submission authentication
// file: who may submit mail for sharing, keyed by username.
type Credentials struct {
	Entries []Credential `yaml:"credentials"`
}

// LoadCredentials reads a Credentials file from path.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("config: LoadCredentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("config: LoadCredentials: %w", err)
	}
	return creds, nil
}

// Lookup returns the PassHash registered for username, or ok=false.
func (c Credentials) Lookup(username string) (passHash string, ok bool) {
	for _, e := range c.Entries {
		if e.Username == username {
			return e.PassHash, true
		}
	}
	return "", false
}

// Account is one destination's IMAP mailbox a receiver agent polls for its
// share of each message.
type Account struct {
	Addr     string `yaml:"addr"` // host:port of the IMAP server, TLS assumed
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"` // defaults to INBOX when empty
}

// ReceiverConfig is a receiver agent's configuration: one IMAP account per
// destination, all of which must be polled to gather a complete N-way
// share set for any given message.
type ReceiverConfig struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadReceiverConfig reads and validates a ReceiverConfig from path.
func LoadReceiverConfig(path string) (ReceiverConfig, error) {
	var cfg ReceiverConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: LoadReceiverConfig: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: LoadReceiverConfig: %w", err)
	}
	if len(cfg.Accounts) < 2 {
		return cfg, fmt.Errorf("config: LoadReceiverConfig: need at least 2 accounts, got %d", len(cfg.Accounts))
	}
	return cfg, nil
}
