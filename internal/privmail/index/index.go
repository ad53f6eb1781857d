// Package index implements the index builder (C8): it takes a set of
// reconstructed mails, each with its sequence number and per-bucket word
// lists, and produces per-word occurrence bitstrings across mails, which
// it then reshares for downstream MPC search.
package index

import (
	"fmt"

	"github.com/encryptogroup/PrivMail/internal/privmail/codec"
	"github.com/encryptogroup/PrivMail/internal/privmail/identifier"
)

// Mail is the subset of a reconstructed message the index builder needs:
// its sequence number and, per bucket size, the bucketed words it
// contains.
type Mail struct {
	SequenceNumber int
	Buckets        map[int][]string
}

// Built is one index: the fixed-width byte occurrence array for every
// (bucket size, word) pair seen across the input mails.
type Built struct {
	NumEmails int
	Buckets   map[int]map[string][]byte // bucket size -> word -> occurrence bytes
}

// Build computes num_of_emails = max(sequence_number)+1, then for every
// bucket size and every word occurring in that bucket across all mails,
// an occurrence-bytes array of ceil(num_of_emails/8) bytes where bit
// k mod 8 (MSB-first) of byte k div 8 is 1 iff the word appears in the
// mail with sequence number k.
func Build(mails []Mail) Built {
	numEmails := 0
	for _, m := range mails {
		if m.SequenceNumber+1 > numEmails {
			numEmails = m.SequenceNumber + 1
		}
	}

	positions := make(map[int]map[string][]int)
	for _, m := range mails {
		for size, words := range m.Buckets {
			bySize, ok := positions[size]
			if !ok {
				bySize = make(map[string][]int)
				positions[size] = bySize
			}
			for _, w := range words {
				bySize[w] = append(bySize[w], m.SequenceNumber)
			}
		}
	}

	numBytes := (numEmails + 7) / 8
	buckets := make(map[int]map[string][]byte, len(positions))
	for size, bySize := range positions {
		words := make(map[string][]byte, len(bySize))
		for w, seqs := range bySize {
			occ := make([]byte, numBytes)
			for _, k := range seqs {
				occ[k/8] |= 1 << uint(7-k%8)
			}
			words[w] = occ
		}
		buckets[size] = words
	}

	return Built{NumEmails: numEmails, Buckets: buckets}
}

// SharedFile is one of the N output index files: the index's UID, the
// mail count, and per (bucket size, word) pair the N-tuple member of the
// word's truncated share and its occurrence share.
type SharedFile struct {
	UID       string
	NumEmails int
	Buckets   map[int][]WordOccurrenceShare
}

// WordOccurrenceShare is one share's view of a single (word, occurrence)
// pair: this file's share of the truncated-encoded word, and this file's
// share of the cleartext occurrence bytes.
type WordOccurrenceShare struct {
	WordShare       string
	OccurrenceShare []byte
}

// Share reshares a Built index into n output files. XOR-reducing
// WordShare across all n files recovers the (bucketed, padded,
// truncated-encoded) word; XOR-reducing OccurrenceShare recovers the
// cleartext occurrence bytes.
func Share(built Built, n int) ([]SharedFile, error) {
	uid, err := identifier.MakeUID()
	if err != nil {
		return nil, fmt.Errorf("index: Share: %w", err)
	}

	files := make([]SharedFile, n)
	for i := range files {
		files[i] = SharedFile{
			UID:       uid,
			NumEmails: built.NumEmails,
			Buckets:   make(map[int][]WordOccurrenceShare),
		}
	}

	for size, words := range built.Buckets {
		for word, occ := range words {
			wordShares, err := codec.ShareStringTruncated(word, n)
			if err != nil {
				return nil, fmt.Errorf("index: Share: word %q: %w", word, err)
			}
			occShares, err := codec.ShareBytes(occ, n, 8)
			if err != nil {
				return nil, fmt.Errorf("index: Share: occurrence bytes for %q: %w", word, err)
			}
			for i := 0; i < n; i++ {
				files[i].Buckets[size] = append(files[i].Buckets[size], WordOccurrenceShare{
					WordShare:       wordShares[i],
					OccurrenceShare: occShares[i],
				})
			}
		}
	}

	return files, nil
}
