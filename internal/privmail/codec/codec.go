// Package codec implements PrivMail's additive secret sharing: splitting a
// byte array into N shares whose bytewise XOR reconstructs the original, and
// the two encoding regimes (7-bit raw, 6-bit truncated) used to turn email
// text into shareable byte arrays.
//
// The scheme is confidentiality-only. It has no authentication or integrity
// check; an honest-but-curious holder of fewer than N shares learns nothing
// about the original bytes, but a malicious holder can corrupt them
// undetectably. See spec Non-goals.
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// Regime selects the alphabet an input string is encoded into before
// sharing.
type Regime int

const (
	// Raw7 treats the input as 7-bit ASCII, replacing any non-ASCII byte
	// with '?'. Shares are XORed with 7-bit random words.
	Raw7 Regime = iota
	// Truncated6 maps every byte through SpecialEncoding into 0..63 before
	// sharing with 6-bit random words. Used for the case-folded,
	// equality-searchable channel.
	Truncated6
)

// SpecialEncoding is the fixed 128-entry table folding 7-bit ASCII down to
// 6 bits. Based on SixBit ASCII (as used by AIS): uppercase and lowercase
// letters fold to the same code point, a punctuation/digit subset passes
// through shifted, and anything with no representation maps to the
// sentinel 42 (the code for '*').
var SpecialEncoding = [128]byte{
	42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42,
	42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42, 42,
	32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47,
	48, 49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 63,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31,
	42, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 42, 42, 42, 42, 42,
}

// SpecialDecoding is the inverse 64-entry table, mapping a reconstructed
// 6-bit value back to a printable ASCII byte in 32..95.
var SpecialDecoding = [64]byte{
	64, 65, 66, 67, 68, 69, 70, 71, 72, 73, 74, 75, 76, 77, 78, 79,
	80, 81, 82, 83, 84, 85, 86, 87, 88, 89, 90, 91, 92, 93, 94, 95,
	32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47,
	48, 49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 63,
}

// ShareBytes splits input into N byte arrays of the same length whose
// bytewise XOR equals input. Each of the N-1 random shares is drawn from a
// CSPRNG, byte by byte, uniformly in [0, 2^bitsPerRandom - 1).
//
// N must be at least 2 and bitsPerRandom must be in 1..8.
func ShareBytes(input []byte, n int, bitsPerRandom int) ([][]byte, error) {
	if n < 2 {
		return nil, fmt.Errorf("codec: ShareBytes: %w (got %d)", perr.ErrShareCountTooSmall, n)
	}
	if bitsPerRandom < 1 || bitsPerRandom > 8 {
		return nil, fmt.Errorf("codec: ShareBytes: %w (got %d)", perr.ErrRandBitsOutOfRange, bitsPerRandom)
	}

	mask := byte(1<<uint(bitsPerRandom)) - 1

	shares := make([][]byte, n)
	accum := make([]byte, len(input))
	copy(accum, input)

	randBuf := make([]byte, len(input))
	for i := 1; i < n; i++ {
		if len(randBuf) > 0 {
			if _, err := rand.Read(randBuf); err != nil {
				return nil, fmt.Errorf("codec: ShareBytes: reading randomness: %w", err)
			}
		}
		share := make([]byte, len(input))
		for j, rb := range randBuf {
			rb &= mask
			share[j] = rb
			accum[j] ^= rb
		}
		shares[i] = share
	}
	shares[0] = accum

	return shares, nil
}

// ReconstructBytes XOR-reduces a set of equal-length shares back into the
// original byte array.
func ReconstructBytes(shares [][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, nil
	}
	n := len(shares[0])
	for _, s := range shares {
		if len(s) != n {
			return nil, fmt.Errorf("codec: ReconstructBytes: %w", perr.ErrShareLengthMismatch)
		}
	}
	out := make([]byte, n)
	for _, s := range shares {
		for i, b := range s {
			out[i] ^= b
		}
	}
	return out, nil
}

// ShareStringRaw ASCII-encodes s (replacing any non-ASCII byte with '?'),
// then shares it with 7 random bits per byte, returning N canonical Base64
// strings.
func ShareStringRaw(s string, n int) ([]string, error) {
	raw := toASCII(s)
	shares, err := ShareBytes(raw, n, 7)
	if err != nil {
		return nil, fmt.Errorf("codec: ShareStringRaw: %w", err)
	}
	return encodeShares(shares), nil
}

// ShareStringTruncated maps each ASCII byte of s through SpecialEncoding
// (bytes >= 128 are invalid, replaced with '?' before mapping like Raw7's
// replacement policy, then mapped to the sentinel 42), then shares the
// result with 6 random bits per byte.
func ShareStringTruncated(s string, n int) ([]string, error) {
	raw := toASCII(s)
	truncated := make([]byte, len(raw))
	for i, b := range raw {
		truncated[i] = SpecialEncoding[b&0x7f]
	}
	shares, err := ShareBytes(truncated, n, 6)
	if err != nil {
		return nil, fmt.Errorf("codec: ShareStringTruncated: %w", err)
	}
	return encodeShares(shares), nil
}

// ReconstructString Base64-decodes each share, XOR-reduces them, and (when
// truncated is true) maps each resulting byte back through SpecialDecoding.
// Base64 input must be canonical; malformed input is rejected.
func ReconstructString(shares []string, truncated bool) (string, error) {
	decoded := make([][]byte, len(shares))
	for i, s := range shares {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", fmt.Errorf("codec: ReconstructString: %w: %v", perr.ErrInvalidBase64, err)
		}
		decoded[i] = b
	}
	combined, err := ReconstructBytes(decoded)
	if err != nil {
		return "", fmt.Errorf("codec: ReconstructString: %w", err)
	}
	if truncated {
		out := make([]byte, len(combined))
		for i, b := range combined {
			if int(b) >= len(SpecialDecoding) {
				return "", fmt.Errorf("codec: ReconstructString: %w: value %d out of range", perr.ErrInvalidEncoding, b)
			}
			out[i] = SpecialDecoding[b]
		}
		return string(out), nil
	}
	return string(combined), nil
}

// ShareString dispatches to ShareStringRaw or ShareStringTruncated based on
// regime. It exists so callers building multi-field messages (the share
// assembler, the query encoder) can select a regime dynamically.
func ShareString(s string, n int, regime Regime) ([]string, error) {
	switch regime {
	case Raw7:
		return ShareStringRaw(s, n)
	case Truncated6:
		return ShareStringTruncated(s, n)
	default:
		return nil, fmt.Errorf("codec: ShareString: unknown regime %d", regime)
	}
}

// encodeShares Base64-encodes each byte share.
func encodeShares(shares [][]byte) []string {
	out := make([]string, len(shares))
	for i, s := range shares {
		out[i] = base64.StdEncoding.EncodeToString(s)
	}
	return out
}

// toASCII encodes s to 7-bit ASCII, replacing each invalid (non-ASCII) rune
// with a single '?', the policy spec.md describes for Python's
// str.encode(errors="replace"). Iterating by rune (not byte) matters: a
// multi-byte rune must collapse to exactly one '?', not one per UTF-8
// continuation byte.
func toASCII(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x80 {
			out = append(out, '?')
		} else {
			out = append(out, byte(r))
		}
	}
	return out
}
