// searchquery.go builds a search-query share file: N shares of a set of
// keyword clauses (field, keyword, NOT modifier, AND/OR connective) ready
// to be handed to the downstream search MPC, plus the plaintext IMAP
// search string an un-shared receiver agent can run directly. This
// supplements the distilled spec with the original construct_search_query
// tool's behavior (see DESIGN.md).
package query

import (
	"fmt"
	"strings"

	"github.com/encryptogroup/PrivMail/internal/privmail/bucket"
	"github.com/encryptogroup/PrivMail/internal/privmail/codec"
	"github.com/encryptogroup/PrivMail/internal/privmail/identifier"
	"github.com/encryptogroup/PrivMail/internal/privmail/perr"
)

// KeywordShare is one share's view of a single query clause.
type KeywordShare struct {
	Field             string
	Keyword           string
	KeywordLengthMask []byte
	KeywordTruncated  string
	KeywordBucketed   string
	KeywordBucketSize int
}

// ShareFile is one of the N output query share files.
type ShareFile struct {
	UID                string
	BucketScheme       []int
	NotModifiers       []bool
	SequenceModifiers  []Connective
	ModifierChainShare []byte
	Keywords           []KeywordShare
}

// BuildQueryShareFiles shares a set of keyword clauses into n query share
// files. keywords, fields, and modifiers must have equal length; sequence
// must have the same length with its final entry ConnectiveNone, matching
// ModifierEncoding's contract. An empty keyword produces no KeywordShare
// entry for that clause in any file (the original tool's "avoid adding
// empty strings" rule).
func BuildQueryShareFiles(keywords, fields []string, modifiers []Modifier, sequence []Connective, n int) ([]ShareFile, error) {
	if len(keywords) != len(fields) || len(keywords) != len(modifiers) {
		return nil, fmt.Errorf("query: BuildQueryShareFiles: %w: keywords=%d fields=%d modifiers=%d",
			perr.ErrArgumentShapeMismatch, len(keywords), len(fields), len(modifiers))
	}

	uid, err := identifier.MakeUID()
	if err != nil {
		return nil, fmt.Errorf("query: BuildQueryShareFiles: %w", err)
	}

	modifierChain, err := ModifierEncoding(modifiers, sequence)
	if err != nil {
		return nil, fmt.Errorf("query: BuildQueryShareFiles: %w", err)
	}
	modifierChainShares, err := codec.ShareBytes(modifierChain, n, 8)
	if err != nil {
		return nil, fmt.Errorf("query: BuildQueryShareFiles: %w", err)
	}

	files := make([]ShareFile, n)
	for i := range files {
		files[i] = ShareFile{
			UID:                uid,
			BucketScheme:       append([]int(nil), bucket.Scheme[:]...),
			SequenceModifiers:  sequence,
			ModifierChainShare: modifierChainShares[i],
		}
		for _, m := range modifiers {
			files[i].NotModifiers = append(files[i].NotModifiers, m == ModifierNot)
		}
	}

	for idx, kw := range keywords {
		if kw == "" {
			continue
		}
		keywordShares, err := codec.ShareStringRaw(kw, n)
		if err != nil {
			return nil, fmt.Errorf("query: BuildQueryShareFiles: keyword %q: %w", kw, err)
		}
		truncatedShares, err := codec.ShareStringTruncated(kw, n)
		if err != nil {
			return nil, fmt.Errorf("query: BuildQueryShareFiles: keyword %q: %w", kw, err)
		}
		mask, err := LengthMask(len(kw))
		if err != nil {
			return nil, fmt.Errorf("query: BuildQueryShareFiles: keyword %q: %w", kw, err)
		}
		maskShares, err := codec.ShareBytes(mask, n, 8)
		if err != nil {
			return nil, fmt.Errorf("query: BuildQueryShareFiles: keyword %q: %w", kw, err)
		}
		bucketed := bucket.BucketKeyword(kw)
		bucketedShares, err := codec.ShareStringTruncated(bucketed, n)
		if err != nil {
			return nil, fmt.Errorf("query: BuildQueryShareFiles: keyword %q: %w", kw, err)
		}

		for i := range files {
			files[i].Keywords = append(files[i].Keywords, KeywordShare{
				Field:             fields[idx],
				Keyword:           keywordShares[i],
				KeywordLengthMask: maskShares[i],
				KeywordTruncated:  truncatedShares[i],
				KeywordBucketed:   bucketedShares[i],
				KeywordBucketSize: len(bucketed),
			})
		}
	}

	return files, nil
}

// BuildIMAPSearch renders keywords/fields/modifiers/sequence as a plaintext
// IMAP SEARCH command string, for a receiver agent that searches its own
// (already-decrypted, locally held) mailbox directly instead of going
// through the MPC search path. sequence follows the same convention as
// ModifierEncoding/BuildQueryShareFiles: one entry per clause, the last
// always ConnectiveNone (it joins clause i to clause i+1, so the final
// clause has nothing to join to). The construct_search_query.py original
// builds this by walking the four argument columns in the reverse order we
// do; we produce the same token set and relative per-clause grouping,
// which is all IMAP's flat token stream needs.
func BuildIMAPSearch(keywords, fields []string, modifiers []Modifier, sequence []Connective) (string, error) {
	if len(keywords) != len(fields) || len(keywords) != len(modifiers) || len(keywords) != len(sequence) {
		return "", fmt.Errorf("query: BuildIMAPSearch: %w: keywords=%d fields=%d modifiers=%d sequence=%d",
			perr.ErrArgumentShapeMismatch, len(keywords), len(fields), len(modifiers), len(sequence))
	}
	if len(sequence) > 0 && sequence[len(sequence)-1] != ConnectiveNone {
		return "", fmt.Errorf("query: BuildIMAPSearch: %w: last connective must be empty, got %q",
			perr.ErrArgumentShapeMismatch, sequence[len(sequence)-1])
	}

	var parts []string
	for i := range keywords {
		if i > 0 && sequence[i-1] == ConnectiveOr {
			parts = append(parts, "OR")
		}
		if modifiers[i] == ModifierNot {
			parts = append(parts, "NOT")
		}
		if fields[i] != "" {
			parts = append(parts, fields[i])
		}
		parts = append(parts, keywords[i])
	}
	return strings.Join(parts, " "), nil
}
