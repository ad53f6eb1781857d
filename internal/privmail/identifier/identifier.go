// Package identifier generates and parses the random UIDs that tie the N
// shares of one original message together.
package identifier

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// ByteLen is the number of random bytes a UID is built from.
const ByteLen = 6

// EncodedLen is the length of a UID's Base64 text form: 4*ceil(ByteLen/3).
var EncodedLen = base64.StdEncoding.EncodedLen(ByteLen)

// MakeUID returns a fresh random UID, rendered as EncodedLen printable
// Base64 characters.
func MakeUID() (string, error) {
	buf := make([]byte, ByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identifier: MakeUID: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// SplitUID separates a header's leading UID from the remainder. headerText
// must be at least EncodedLen characters long, and those leading characters
// must be valid Base64; otherwise ErrInvalidUIDHeader is returned.
func SplitUID(headerText string) (uid, rest string, err error) {
	if len(headerText) < EncodedLen {
		return "", "", fmt.Errorf("identifier: SplitUID: %w: header too short (%d < %d)",
			perr.ErrInvalidUIDHeader, len(headerText), EncodedLen)
	}
	head := headerText[:EncodedLen]
	if _, err := base64.StdEncoding.DecodeString(head); err != nil {
		return "", "", fmt.Errorf("identifier: SplitUID: %w: %v", perr.ErrInvalidUIDHeader, err)
	}
	return head, headerText[EncodedLen:], nil
}
