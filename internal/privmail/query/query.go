// Package query implements the length-mask and modifier-chain bit encodings
// used to build a searchable query share against the index builder's
// output.
package query

import (
	"fmt"

	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// maskLookup gives the big-endian byte with the top k bits set, 0 <= k <= 8.
var maskLookup = [9]byte{0, 128, 192, 224, 240, 248, 252, 254, 255}

// MaskLen is the fixed width of a LengthMask.
const MaskLen = 6

// LengthMask returns a MaskLen-byte big-endian bitstring with the top
// length bits set to 1 and the rest 0. length must be in 0..48; the mask's
// width never reveals the true keyword length beyond "at most 48".
func LengthMask(length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("query: LengthMask: %w: negative length %d", perr.ErrLengthTooLong, length)
	}
	if length > 48 {
		return nil, fmt.Errorf("query: LengthMask: %w: %d > 48", perr.ErrLengthTooLong, length)
	}

	out := make([]byte, MaskLen)
	fullBytes := length / 8
	residual := length % 8
	for i := 0; i < fullBytes; i++ {
		out[i] = 255
	}
	if fullBytes < MaskLen {
		out[fullBytes] = maskLookup[residual]
	}
	return out, nil
}

// Modifier is a per-clause negation flag.
type Modifier string

const (
	ModifierNone Modifier = ""
	ModifierNot  Modifier = "NOT"
)

// Connective joins one clause to the next.
type Connective string

const (
	ConnectiveNone Connective = ""
	ConnectiveAnd  Connective = "AND"
	ConnectiveOr   Connective = "OR"
)

// ModifierEncoding interleaves per-clause NOT flags with inter-clause
// connectives into a single MSB-first packed bitstring: bit i (of the
// interleaved, trailing-empty-dropped sequence) is 1 for NOT or OR, 0 for
// empty or AND. modifiers and sequence must have equal length, and the
// final connective must be empty (no clause follows the last keyword).
func ModifierEncoding(modifiers []Modifier, sequence []Connective) ([]byte, error) {
	if len(modifiers) != len(sequence) {
		return nil, fmt.Errorf("query: ModifierEncoding: %w: %d modifiers vs %d connectives",
			perr.ErrArgumentShapeMismatch, len(modifiers), len(sequence))
	}
	if len(sequence) == 0 {
		return nil, fmt.Errorf("query: ModifierEncoding: %w: empty input", perr.ErrArgumentShapeMismatch)
	}
	if sequence[len(sequence)-1] != ConnectiveNone {
		return nil, fmt.Errorf("query: ModifierEncoding: %w: last connective must be empty, got %q",
			perr.ErrArgumentShapeMismatch, sequence[len(sequence)-1])
	}

	var bits []bool
	for i := range modifiers {
		m := modifiers[i]
		if m != ModifierNone && m != ModifierNot {
			return nil, fmt.Errorf("query: ModifierEncoding: %w: unknown modifier %q", perr.ErrArgumentShapeMismatch, m)
		}
		bits = append(bits, m == ModifierNot)

		s := sequence[i]
		if s == ConnectiveNone {
			if i != len(sequence)-1 {
				return nil, fmt.Errorf("query: ModifierEncoding: %w: clause %d has an empty connective but is not the last clause",
					perr.ErrArgumentShapeMismatch, i)
			}
			// Last clause: no connective follows, so it contributes no bit.
			continue
		}
		if s != ConnectiveAnd && s != ConnectiveOr {
			return nil, fmt.Errorf("query: ModifierEncoding: %w: unknown connective %q", perr.ErrArgumentShapeMismatch, s)
		}
		bits = append(bits, s == ConnectiveOr)
	}

	return packBits(bits), nil
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if !b {
			continue
		}
		out[i/8] |= 1 << uint(7-i%8)
	}
	return out
}
