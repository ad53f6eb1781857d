package index

import (
	"testing"

	"github.com/encryptogroup/PrivMail/internal/privmail/codec"
)

func TestBuildOccurrenceBits(t *testing.T) {
	mails := []Mail{
		{SequenceNumber: 0, Buckets: map[int][]string{5: {"cat**"}}},
		{SequenceNumber: 1, Buckets: map[int][]string{5: {"dog**"}}},
		{SequenceNumber: 2, Buckets: map[int][]string{5: {"cat**"}}},
	}
	built := Build(mails)
	if built.NumEmails != 3 {
		t.Fatalf("NumEmails = %d, want 3", built.NumEmails)
	}
	cat := built.Buckets[5]["cat**"]
	if len(cat) != 1 {
		t.Fatalf("occurrence bytes length = %d, want 1 (ceil(3/8))", len(cat))
	}
	// bit 0 and bit 2 set, MSB-first: 1010 0000 = 0xA0
	if cat[0] != 0xA0 {
		t.Errorf("cat occurrence byte = %08b, want %08b", cat[0], 0xA0)
	}
	dog := built.Buckets[5]["dog**"]
	if dog[0] != 0x40 {
		t.Errorf("dog occurrence byte = %08b, want %08b", dog[0], 0x40)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	built := Build(nil)
	if built.NumEmails != 0 {
		t.Errorf("NumEmails = %d, want 0", built.NumEmails)
	}
	if len(built.Buckets) != 0 {
		t.Errorf("Buckets = %v, want empty", built.Buckets)
	}
}

func TestShareRoundTrip(t *testing.T) {
	mails := []Mail{
		{SequenceNumber: 0, Buckets: map[int][]string{5: {"cat**"}}},
		{SequenceNumber: 1, Buckets: map[int][]string{5: {"dog**"}}},
	}
	built := Build(mails)
	const n = 3
	files, err := Share(built, n)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if len(files) != n {
		t.Fatalf("got %d files, want %d", len(files), n)
	}
	for i := 1; i < n; i++ {
		if files[i].UID != files[0].UID {
			t.Errorf("file %d uid = %q, want %q (shared across files)", i, files[i].UID, files[0].UID)
		}
	}

	entries := len(files[0].Buckets[5])
	for j := 0; j < entries; j++ {
		wordShares := make([]string, n)
		var occShares [][]byte
		for i := 0; i < n; i++ {
			wordShares[i] = files[i].Buckets[5][j].WordShare
			occShares = append(occShares, files[i].Buckets[5][j].OccurrenceShare)
		}
		word, err := codec.ReconstructString(wordShares, true)
		if err != nil {
			t.Fatalf("ReconstructString: %v", err)
		}
		if word != "cat**" && word != "dog**" {
			t.Errorf("reconstructed word = %q, want cat** or dog**", word)
		}
		occ, err := codec.ReconstructBytes(occShares)
		if err != nil {
			t.Fatalf("ReconstructBytes: %v", err)
		}
		if len(occ) != 1 {
			t.Fatalf("occurrence length = %d, want 1", len(occ))
		}
	}
}
