package rfc5322

import "fmt"

// ProtocolError describes a malformed header a strict reader would reject,
// but which the share protocol's receiver logs and tolerates rather than
// dropping the whole envelope.
type ProtocolError string

func (p ProtocolError) Error() string { return string(p) }

// Error represents a numeric error response, kept for parity with the
// textproto lineage of this package; PrivMail's SMTP layer builds its own
// responses but the type is handy when wrapping emersion/go-imap/go-smtp
// errors that carry a status code.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%03d %s", e.Code, e.Msg) }

func isASCIILetter(b byte) bool {
	b |= 0x20
	return 'a' <= b && b <= 'z'
}

// trim returns s with leading and trailing spaces and tabs removed. It does
// not assume Unicode or UTF-8, matching RFC 5322's byte-oriented grammar.
func trim(s []byte) []byte {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	n := len(s)
	for n > i && (s[n-1] == ' ' || s[n-1] == '\t') {
		n--
	}
	return s[i:n]
}
