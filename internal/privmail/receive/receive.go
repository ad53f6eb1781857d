// Package receive implements the receiver-side share reassembler (C7): per
// envelope, it extracts the share blocks from a received body, tracks the
// UID→Sequence map, and later reconstructs fields across the N share
// records that share a UID.
package receive

import (
	"fmt"
	"sort"
	"sync"

	"github.com/encryptogroup/PrivMail/internal/privmail/codec"
	"github.com/encryptogroup/PrivMail/internal/privmail/framing"
	"github.com/encryptogroup/PrivMail/internal/privmail/identifier"
	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// ShareRecord is one (original-message, share-index) pair, as persisted by
// the receiver. It is the unit store.Save/Load works with.
type ShareRecord struct {
	UID                       string              `yaml:"uid"`
	SequenceNumber            int                 `yaml:"sequence_number"`
	MailFrom                  string              `yaml:"mail_from"`
	RcptTos                   []string            `yaml:"rcpt_tos"`
	Subject                   string              `yaml:"subject"`
	Body                      string              `yaml:"body"`
	SecretShareBlock          string              `yaml:"SECRET_SHARE_BLOCK"`
	SecretShareTruncatedBlock string              `yaml:"SECRET_SHARE_TRUNCATED_BLOCK"`
	SecretShareBucketBlocks   map[int][]string    `yaml:"SECRET_SHARE_BUCKET_BLOCKS"`
}

// SequenceMap assigns a dense 0-based sequence number to each distinct UID,
// in first-seen order. It is the receiver's only piece of mutable
// process-wide state and must be touched only from the single envelope
// handler task (spec's concurrency model assumes a cooperative,
// single-threaded handler); the mutex here is a defensive boundary for
// callers that don't honor that, not a substitute for it.
type SequenceMap struct {
	mu   sync.Mutex
	seq  map[string]int
	next int
}

// NewSequenceMap returns an empty map.
func NewSequenceMap() *SequenceMap {
	return &SequenceMap{seq: make(map[string]int)}
}

// Assign returns uid's sequence number, assigning the next free one if uid
// has not been seen before.
func (m *SequenceMap) Assign(uid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.seq[uid]; ok {
		return n
	}
	n := m.next
	m.seq[uid] = n
	m.next++
	return n
}

// Snapshot returns a copy of the current uid->sequence map.
func (m *SequenceMap) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.seq))
	for k, v := range m.seq {
		out[k] = v
	}
	return out
}

// RebuildSequenceMap recovers a SequenceMap from a set of persisted share
// records by scanning them in the given order: the first occurrence of a
// UID sets its sequence number, and any later record carrying the same UID
// but a different sequence number is logged via warn and otherwise
// ignored. The supplied order matters only in that "first occurrence"
// is order-dependent; reconstruction from any single consistent on-disk
// ordering yields the same map (scenario 6, spec.md §8).
func RebuildSequenceMap(records []ShareRecord, warn func(format string, v ...interface{})) *SequenceMap {
	m := NewSequenceMap()
	for _, r := range records {
		if r.UID == "" {
			continue
		}
		assigned := m.Assign(r.UID)
		if r.SequenceNumber != 0 && assigned != r.SequenceNumber {
			if warn != nil {
				warn("receive: uid %s: persisted sequence %d disagrees with recovered sequence %d", r.UID, r.SequenceNumber, assigned)
			}
		}
	}
	return m
}

// Envelope is the minimal SMTP envelope information the core needs to build
// a ShareRecord; everything else (connection handling, timeouts, TLS) is
// the receiver daemon's job, not the core's.
type Envelope struct {
	MailFrom string
	RcptTos  []string
	Subject  string
	Body     string
}

// Extract parses env's body for a Body share scheme. If none is present,
// the envelope is not part of any share protocol; Extract returns the
// envelope verbatim as a UID-less record and ok=false, matching spec.md
// §4.7 step 1 ("stores raw subject/body with no UID handling").
// Otherwise it splits the subject's UID, assigns a sequence number from m,
// and scans the body through framing's block-extraction state machine.
func Extract(env Envelope, m *SequenceMap, warn func(format string, v ...interface{})) (ShareRecord, bool, error) {
	if found, _ := framing.ContainsScheme(env.Body, framing.BodyBegin, framing.BodyEnd); !found {
		return ShareRecord{
			MailFrom: env.MailFrom,
			RcptTos:  env.RcptTos,
			Subject:  env.Subject,
			Body:     env.Body,
		}, false, nil
	}

	uid, cleanSubject, err := identifier.SplitUID(env.Subject)
	if err != nil {
		return ShareRecord{}, false, fmt.Errorf("receive: Extract: %w", err)
	}

	remainder, bodyBlock, truncatedBlock, buckets, err := framing.ExtractBody(env.Body)
	if err != nil && warn != nil {
		warn("receive: Extract: uid %s: %v", uid, err)
	}

	known := make(map[int][]string, len(buckets))
	for size, lines := range buckets {
		if !framing.IsBucketSize(size) {
			if warn != nil {
				warn("receive: Extract: uid %s: dropping unknown bucket size %d", uid, size)
			}
			continue
		}
		known[size] = lines
	}

	return ShareRecord{
		UID:                       uid,
		SequenceNumber:            m.Assign(uid),
		MailFrom:                  env.MailFrom,
		RcptTos:                   env.RcptTos,
		Subject:                   cleanSubject,
		Body:                      remainder,
		SecretShareBlock:          bodyBlock,
		SecretShareTruncatedBlock: truncatedBlock,
		SecretShareBucketBlocks:   known,
	}, true, nil
}

// Reconstructed is one fully reconstructed original message.
type Reconstructed struct {
	UID            string
	SequenceNumber int
	Subject        string
	Body           string
	Truncated      string
	Buckets        map[int][]string // bucket size -> reconstructed words, column order
}

// Reconstruct groups records by UID and reconstructs each shared field.
// A UID group whose record count differs from n is skipped and logged:
// per the spec's Open Questions, "best effort" XOR-reduction over a
// mismatched share count produces garbage, so we do not attempt it.
// Records with no UID are ignored with a warning.
func Reconstruct(records []ShareRecord, n int, warn func(format string, v ...interface{})) ([]Reconstructed, error) {
	groups := make(map[string][]ShareRecord)
	for _, r := range records {
		if r.UID == "" {
			if warn != nil {
				warn("receive: Reconstruct: dropping share record with no uid")
			}
			continue
		}
		groups[r.UID] = append(groups[r.UID], r)
	}

	uids := make([]string, 0, len(groups))
	for uid := range groups {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var out []Reconstructed
	for _, uid := range uids {
		group := groups[uid]
		if len(group) != n {
			if warn != nil {
				warn("receive: Reconstruct: uid %s: %v: have %d, want %d", uid, perr.ErrShareCountMismatch, len(group), n)
			}
			continue
		}

		seq := group[0].SequenceNumber
		for _, r := range group[1:] {
			if r.SequenceNumber != seq {
				if warn != nil {
					warn("receive: Reconstruct: uid %s: sequence number mismatch among siblings (%d vs %d), using first", uid, r.SequenceNumber, seq)
				}
			}
		}

		rec, err := reconstructGroup(uid, seq, group)
		if err != nil {
			return nil, fmt.Errorf("receive: Reconstruct: uid %s: %w", uid, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func reconstructGroup(uid string, seq int, group []ShareRecord) (Reconstructed, error) {
	subjects := make([]string, len(group))
	bodies := make([]string, len(group))
	truncateds := make([]string, len(group))
	for i, r := range group {
		subjects[i] = r.Subject
		bodies[i] = r.SecretShareBlock
		truncateds[i] = r.SecretShareTruncatedBlock
	}

	subject, err := codec.ReconstructString(subjects, false)
	if err != nil {
		return Reconstructed{}, fmt.Errorf("subject: %w", err)
	}
	body, err := codec.ReconstructString(bodies, false)
	if err != nil {
		return Reconstructed{}, fmt.Errorf("body: %w", err)
	}
	truncated, err := codec.ReconstructString(truncateds, true)
	if err != nil {
		return Reconstructed{}, fmt.Errorf("truncated body: %w", err)
	}

	buckets, err := reconstructBuckets(group)
	if err != nil {
		return Reconstructed{}, fmt.Errorf("buckets: %w", err)
	}

	return Reconstructed{
		UID:            uid,
		SequenceNumber: seq,
		Subject:        subject,
		Body:           body,
		Truncated:      truncated,
		Buckets:        buckets,
	}, nil
}

// reconstructBuckets reconstructs each bucket column-wise: the i-th word
// line across all N share records of a given bucket size is one word's N
// shares.
func reconstructBuckets(group []ShareRecord) (map[int][]string, error) {
	sizes := make(map[int]bool)
	for _, r := range group {
		for size := range r.SecretShareBucketBlocks {
			sizes[size] = true
		}
	}

	out := make(map[int][]string, len(sizes))
	for size := range sizes {
		count := len(group[0].SecretShareBucketBlocks[size])
		for _, r := range group[1:] {
			if len(r.SecretShareBucketBlocks[size]) != count {
				return nil, fmt.Errorf("%w for bucket %d", perr.ErrShareCountMismatch, size)
			}
		}

		words := make([]string, 0, count)
		for j := 0; j < count; j++ {
			shares := make([]string, len(group))
			for i, r := range group {
				shares[i] = r.SecretShareBucketBlocks[size][j]
			}
			w, err := codec.ReconstructString(shares, true)
			if err != nil {
				return nil, err
			}
			words = append(words, w)
		}
		out[size] = words
	}
	return out, nil
}
