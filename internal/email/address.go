// Package email holds the small wire-format value types shared between the
// RFC-5322 parser and PrivMail's core: an address, and the envelope a
// receiver hands off to the core for secret-share extraction.
package email

// Address is an RFC-5322 mailbox: an optional display name plus the
// addr-spec.
type Address struct {
	Name string
	Addr string
}
