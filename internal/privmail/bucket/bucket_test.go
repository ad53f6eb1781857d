package bucket

import (
	"reflect"
	"testing"
)

// TestBucketKeywordPadding is scenario 5 from spec.md §8.
func TestBucketKeywordPadding(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "*****"},
		{"xxxx", "xxxx*"},
		{"x4567890123456789012"[:21], ""}, // 21 chars, unindexable
	}
	for _, tc := range tests {
		got := BucketKeyword(tc.in)
		if got != tc.want {
			t.Errorf("BucketKeyword(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBucketKeywordExactSizes(t *testing.T) {
	for _, size := range Scheme {
		word := make([]byte, size)
		for i := range word {
			word[i] = 'a'
		}
		got := BucketKeyword(string(word))
		if got != string(word) {
			t.Errorf("BucketKeyword of exact size %d = %q, want unchanged", size, got)
		}
	}
}

func TestBucketKeywordResultShape(t *testing.T) {
	for _, w := range []string{"", "a", "hello", "averylongwordindeed", strings0(21)} {
		got := BucketKeyword(w)
		if got == "" {
			continue
		}
		ok := false
		for _, s := range Scheme {
			if len(got) == s {
				ok = true
			}
		}
		if !ok {
			t.Errorf("BucketKeyword(%q) = %q, length not in scheme", w, got)
		}
	}
}

func strings0(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'z'
	}
	return string(b)
}

func TestTokenizeOrderAndPositions(t *testing.T) {
	got := Tokenize("the quick brown fox the fox")
	want := []Occurrence{
		{"the", []int{0, 4}},
		{"quick", []int{1}},
		{"brown", []int{2}},
		{"fox", []int{3, 5}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %#v, want %#v", got, want)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "Hello, World!"},
		{"  multiple   spaces  ", "multiple spaces"},
		{"MiXeD\tCase\nText", "MiXeD Case Text"},
	}
	for _, tc := range tests {
		got := CollapseWhitespace(tc.in)
		if got != tc.want {
			t.Errorf("CollapseWhitespace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestNormalizeForTruncation only exercises the six sentence-ending
// punctuation-then-space sequences; punctuation elsewhere (an apostrophe, a
// hyphen, trailing punctuation with nothing after it) must survive intact,
// matching sender_client_proxy.py's explicit .replace(...) chain.
func TestNormalizeForTruncation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world!"},
		{"multiple spaces", "multiple spaces"},
		{"MiXeD Case Text", "mixed case text"},
		{"Hello. World, there! Right? Yes; OK: done.", "hello world there right yes ok done."},
		{"don't stop-go (really)", "don't stop-go (really)"},
	}
	for _, tc := range tests {
		got := NormalizeForTruncation(tc.in)
		if got != tc.want {
			t.Errorf("NormalizeForTruncation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBucketByWordGroupsBySize(t *testing.T) {
	buckets, err := BucketByWord("cat dog elephant")
	if err != nil {
		t.Fatalf("BucketByWord: %v", err)
	}
	if len(buckets[5]) != 2 {
		t.Errorf("bucket 5 = %v, want 2 entries (cat, dog padded to 5)", buckets[5])
	}
	if len(buckets[10]) != 1 {
		t.Errorf("bucket 10 = %v, want 1 entry (elephant padded to 10)", buckets[10])
	}
	seen := make(map[string]bool)
	for _, w := range buckets[5] {
		seen[w] = true
	}
	if !seen["cat**"] || !seen["dog**"] {
		t.Errorf("bucket 5 = %v, want cat** and dog**", buckets[5])
	}
}

func TestBucketByWordSkipsUnindexable(t *testing.T) {
	long := strings0(25)
	buckets, err := BucketByWord(long)
	if err != nil {
		t.Fatalf("BucketByWord: %v", err)
	}
	for size, words := range buckets {
		t.Errorf("bucket %d unexpectedly contains %v for an unindexable word", size, words)
	}
}
