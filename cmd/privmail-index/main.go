// Command privmail-index reconstructs the share records accumulated by a
// receiverd instance, builds a per-word occurrence index across them, and
// reshares that index into N output files for downstream MPC search.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/encryptogroup/PrivMail/internal/privmail/index"
	"github.com/encryptogroup/PrivMail/internal/privmail/receive"
	"github.com/encryptogroup/PrivMail/internal/privmail/store"
)

func main() {
	log.SetFlags(0)

	flagDir := flag.String("dir", "", "directory of share records written by privmail-receiverd (required)")
	flagN := flag.Int("n", 0, "number of destinations / shares per message (required)")
	flagOutDir := flag.String("out", "", "directory to write the N index share files (required)")
	flag.Parse()

	if *flagDir == "" || *flagN < 2 || *flagOutDir == "" {
		log.Fatal("privmail-index: -dir, -out, and -n (>= 2) are required")
	}

	records, err := store.LoadShareRecords(*flagDir, log.Printf)
	if err != nil {
		log.Fatalf("privmail-index: loading share records: %v", err)
	}

	reconstructed, err := receive.Reconstruct(records, *flagN, log.Printf)
	if err != nil {
		log.Fatalf("privmail-index: reconstructing: %v", err)
	}
	log.Printf("privmail-index: reconstructed %d message(s) from %d share record(s)", len(reconstructed), len(records))

	mails := make([]index.Mail, len(reconstructed))
	for i, r := range reconstructed {
		mails[i] = index.Mail{SequenceNumber: r.SequenceNumber, Buckets: r.Buckets}
	}

	built := index.Build(mails)
	files, err := index.Share(built, *flagN)
	if err != nil {
		log.Fatalf("privmail-index: sharing index: %v", err)
	}

	if err := os.MkdirAll(*flagOutDir, 0o700); err != nil {
		log.Fatalf("privmail-index: creating -out: %v", err)
	}
	for i, f := range files {
		data, err := yaml.Marshal(f)
		if err != nil {
			log.Fatalf("privmail-index: marshaling share %d: %v", i, err)
		}
		path := filepath.Join(*flagOutDir, fmt.Sprintf("index-share-%d.yaml", i))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			log.Fatalf("privmail-index: writing %s: %v", path, err)
		}
	}
	log.Printf("privmail-index: wrote %d index share file(s) to %s, covering %d emails", len(files), *flagOutDir, built.NumEmails)
}
