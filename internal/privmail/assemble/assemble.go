// Package assemble implements the sender-side share assembler (C6): it
// turns one plaintext message into N outbound messages, each carrying one
// share of the subject, body, truncated body, and bucketed keywords, framed
// with the block delimiters the receiver's extractor expects.
package assemble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/encryptogroup/PrivMail/internal/privmail/bucket"
	"github.com/encryptogroup/PrivMail/internal/privmail/codec"
	"github.com/encryptogroup/PrivMail/internal/privmail/framing"
	"github.com/encryptogroup/PrivMail/internal/privmail/identifier"
)

// LineWidth is the maximum length of a Base64 payload line inside a block.
const LineWidth = 60

// Message is a plaintext message ready to be shared.
type Message struct {
	Subject string
	Body    string
}

// Outbound is one recipient's share of a Message: a Subject header value
// (UID-prefixed) and a body carrying the framed share blocks.
type Outbound struct {
	Subject string
	Body    string
}

// Assemble shares msg into n Outbound messages, one per destination. The
// same UID appears in every recipient's Subject so the receiver's C7 stage
// can regroup them.
func Assemble(msg Message, n int) ([]Outbound, error) {
	uid, err := identifier.MakeUID()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	bodyShares, err := codec.ShareStringRaw(msg.Body, n)
	if err != nil {
		return nil, fmt.Errorf("assemble: sharing body: %w", err)
	}

	collapsed := bucket.CollapseWhitespace(msg.Body)
	truncatedShares, err := codec.ShareStringTruncated(collapsed, n)
	if err != nil {
		return nil, fmt.Errorf("assemble: sharing truncated body: %w", err)
	}

	normalized := bucket.NormalizeForTruncation(collapsed)
	bucketShares, bucketOrder, err := shareBuckets(normalized, n)
	if err != nil {
		return nil, fmt.Errorf("assemble: sharing buckets: %w", err)
	}

	subjectShares, err := codec.ShareStringRaw(msg.Subject, n)
	if err != nil {
		return nil, fmt.Errorf("assemble: sharing subject: %w", err)
	}

	out := make([]Outbound, n)
	for i := 0; i < n; i++ {
		var body strings.Builder
		writeBlock(&body, framing.BodyBegin, framing.BodyEnd, bodyShares[i])
		body.WriteString("\n")
		writeBlock(&body, framing.TruncatedBegin, framing.TruncatedEnd, truncatedShares[i])

		for _, size := range bucketOrder {
			body.WriteString("\n")
			writeBucketBlock(&body, size, bucketShares[size][i])
		}

		out[i] = Outbound{
			Subject: uid + subjectShares[i],
			Body:    body.String(),
		}
	}
	return out, nil
}

// shareBuckets buckets the distinct words of normalized text (in a random
// visitation order, per the unlinkability requirement) and produces N
// truncated shares for each word, grouped by bucket size. bucketOrder
// records the insertion order of bucket sizes actually present, since
// implementations must not rely on sorted order when building the wire
// message -- but we sort it here anyway for a deterministic, reviewable
// wire format; receivers never depend on section order.
func shareBuckets(normalized string, n int) (map[int][][]string, []int, error) {
	buckets, err := bucket.BucketByWord(normalized)
	if err != nil {
		return nil, nil, err
	}

	shares := make(map[int][][]string, len(buckets))
	order := make([]int, 0, len(buckets))
	for size, words := range buckets {
		order = append(order, size)
		perShare := make([][]string, n)
		for _, w := range words {
			wordShares, err := codec.ShareStringTruncated(w, n)
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < n; i++ {
				perShare[i] = append(perShare[i], wordShares[i])
			}
		}
		shares[size] = perShare
	}
	sort.Ints(order)
	return shares, order, nil
}

// writeBlock writes one Body/Truncated-style block: delimiter, payload
// wrapped to LineWidth-char lines, delimiter.
func writeBlock(b *strings.Builder, begin, end, payload string) {
	b.WriteString(begin)
	b.WriteString("\n")
	for _, line := range wrap(payload, LineWidth) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(end)
	b.WriteString("\n")
}

// writeBucketBlock writes a Bucket(size) block whose payload lines are the
// share strings of every word assigned to that bucket, one per line.
func writeBucketBlock(b *strings.Builder, size int, wordShares []string) {
	b.WriteString(framing.BucketBegin(size))
	b.WriteString("\n")
	for _, w := range wordShares {
		b.WriteString(w)
		b.WriteString("\n")
	}
	b.WriteString(framing.BucketEnd(size))
	b.WriteString("\n")
}

// wrap splits s into chunks of at most width characters.
func wrap(s string, width int) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for len(s) > width {
		lines = append(lines, s[:width])
		s = s[width:]
	}
	lines = append(lines, s)
	return lines
}
