// Package framing implements the block delimiters PrivMail embeds in
// RFC-5322 bodies and the line-by-line state machine used to pull secret
// share blocks back out of a received body.
package framing

import (
	"fmt"
	"strings"

	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// BucketSizes is the fixed bucket scheme; a Bucket block exists for each.
var BucketSizes = [4]int{5, 10, 15, 20}

// Body scheme delimiters.
const (
	BodyBegin = "-----BEGIN SECRET SHARE BLOCK Ver1.0-----"
	BodyEnd   = "-----END SECRET SHARE BLOCK Ver1.0-----"
)

// Truncated scheme delimiters.
const (
	TruncatedBegin = "-----BEGIN SECRET SHARE TRUNCATED BLOCK Ver1.0-----"
	TruncatedEnd   = "-----END SECRET SHARE TRUNCATED BLOCK Ver1.0-----"
)

// BucketBegin returns the exact BEGIN delimiter line for a given bucket size.
func BucketBegin(size int) string {
	return fmt.Sprintf("-----BEGIN SECRET SHARE BUCKET SIZE %d BLOCK Ver1.0-----", size)
}

// BucketEnd returns the exact END delimiter line for a given bucket size.
func BucketEnd(size int) string {
	return fmt.Sprintf("-----END SECRET SHARE BUCKET SIZE %d BLOCK Ver1.0-----", size)
}

// IsBucketSize reports whether size is one of the fixed bucket scheme sizes.
func IsBucketSize(size int) bool {
	for _, s := range BucketSizes {
		if s == size {
			return true
		}
	}
	return false
}

// ContainsScheme splits text into lines and looks for a begin/end delimiter
// pair. It returns the concatenation (no separator) of every line strictly
// between them, or (false, "") if both delimiters were not seen, in order.
func ContainsScheme(text, begin, end string) (bool, string) {
	var out strings.Builder
	started := false
	ended := false

	for _, line := range splitLines(text) {
		if line == end {
			ended = true
		}
		if started && !ended {
			out.WriteString(line)
		}
		if line == begin {
			started = true
		}
	}

	if started && ended {
		return true, out.String()
	}
	return false, ""
}

// Extraction runs the block-scanning state machine over a received body,
// one line at a time. At most one of the Body/Truncated/Bucket(n) flags is
// set at any time; the grammar forbids nesting.
type Extraction struct {
	Body         strings.Builder
	Truncated    strings.Builder
	BucketBlocks map[int][]string // ordered lines per bucket size

	body      bool
	truncated bool
	bucket    int // current open bucket size, 0 if none

	Remainder strings.Builder // free text outside any block

	unterminated bool
}

// NewExtraction returns a ready-to-use Extraction.
func NewExtraction() *Extraction {
	return &Extraction{BucketBlocks: make(map[int][]string)}
}

// Line feeds one line of the body through the state machine. Delimiter
// lines are consumed (never appended anywhere). The delimiter families are
// tested in a fixed order -- Body, Truncated, Bucket -- matching spec.md
// §4.2.
func (e *Extraction) Line(line string) {
	if e.handleBody(line) {
		return
	}
	if e.handleTruncated(line) {
		return
	}
	if e.handleBucket(line) {
		return
	}

	switch {
	case e.body:
		e.Body.WriteString(line)
	case e.truncated:
		e.Truncated.WriteString(line)
	case e.bucket != 0:
		e.BucketBlocks[e.bucket] = append(e.BucketBlocks[e.bucket], line)
	default:
		e.Remainder.WriteString(line)
	}
}

func (e *Extraction) handleBody(line string) bool {
	switch line {
	case BodyBegin:
		e.body = true
		return true
	case BodyEnd:
		e.body = false
		return true
	}
	return false
}

func (e *Extraction) handleTruncated(line string) bool {
	switch line {
	case TruncatedBegin:
		e.truncated = true
		return true
	case TruncatedEnd:
		e.truncated = false
		return true
	}
	return false
}

func (e *Extraction) handleBucket(line string) bool {
	for _, size := range BucketSizes {
		if line == BucketBegin(size) {
			e.bucket = size
			if _, ok := e.BucketBlocks[size]; !ok {
				e.BucketBlocks[size] = nil
			}
			return true
		}
		if line == BucketEnd(size) {
			e.bucket = 0
			return true
		}
	}
	return false
}

// Finish must be called after the last line has been fed. It reports
// ErrMalformedBlock if any block was left open at EOF; the caller should log
// this as a warning and keep whatever was captured (spec.md §4.2, §7).
func (e *Extraction) Finish() error {
	if e.body || e.truncated || e.bucket != 0 {
		e.unterminated = true
		return fmt.Errorf("framing: Finish: %w", perr.ErrMalformedBlock)
	}
	return nil
}

// Unterminated reports whether Finish found an open block.
func (e *Extraction) Unterminated() bool { return e.unterminated }

// ExtractBody runs the state machine over an entire body string and returns
// the four parallel outputs described in spec.md §4.2: the free-text
// remainder, the Body block interior, the Truncated block interior, and the
// ordered Bucket(n) line lists. The returned error is non-nil only when a
// block was left unterminated; the partial results are still valid and
// should be used.
func ExtractBody(body string) (remainder, bodyBlock, truncatedBlock string, buckets map[int][]string, err error) {
	e := NewExtraction()
	for _, line := range splitLines(body) {
		e.Line(line)
	}
	err = e.Finish()
	return e.Remainder.String(), e.Body.String(), e.Truncated.String(), e.BucketBlocks, err
}

// splitLines splits on the same line boundaries Python's str.splitlines
// recognizes for our purposes: \r\n, \r, and \n, without retaining the
// terminator.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if s == "" {
		return nil
	}
	// Python's str.splitlines() does not emit a trailing empty element for
	// a final line terminator; strings.Split does, so trim one off first.
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
