// Command privmail-query builds a secret-shared search query: a list of
// keyword clauses (field, keyword, NOT modifier, AND/OR connective to the
// next clause) turned into N query share files, ready to be sent to each
// destination's search MPC participant.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/encryptogroup/PrivMail/internal/privmail/query"
)

// clauseFlag accumulates repeated -clause flags into (field, keyword,
// modifier, connective) tuples, e.g. -clause "SUBJECT,invoice,,AND".
type clauseFlag struct {
	fields    []string
	keywords  []string
	modifiers []query.Modifier
	sequence  []query.Connective
}

func (c *clauseFlag) String() string { return strings.Join(c.keywords, ",") }

func (c *clauseFlag) Set(s string) error {
	parts := strings.SplitN(s, ",", 4)
	if len(parts) != 4 {
		return fmt.Errorf("want FIELD,KEYWORD,MODIFIER,CONNECTIVE, got %q", s)
	}
	c.fields = append(c.fields, parts[0])
	c.keywords = append(c.keywords, parts[1])
	c.modifiers = append(c.modifiers, query.Modifier(parts[2]))
	c.sequence = append(c.sequence, query.Connective(parts[3]))
	return nil
}

func main() {
	log.SetFlags(0)

	var clauses clauseFlag
	flag.Var(&clauses, "clause", `a query clause as "FIELD,KEYWORD,MODIFIER,CONNECTIVE" (MODIFIER is "" or NOT; CONNECTIVE joining to the next clause is "", AND, or OR; the last clause's CONNECTIVE must be empty). Repeatable.`)
	flagN := flag.Int("n", 0, "number of destinations / query shares to produce (required)")
	flagOutDir := flag.String("out", "", "directory to write the N query share files (required)")
	flagIMAP := flag.Bool("imap", false, "also print the plaintext IMAP SEARCH string for local, un-shared use")
	flag.Parse()

	if len(clauses.keywords) == 0 || *flagN < 2 || *flagOutDir == "" {
		log.Fatal("privmail-query: at least one -clause, -out, and -n (>= 2) are required")
	}

	if *flagIMAP {
		s, err := query.BuildIMAPSearch(clauses.keywords, clauses.fields, clauses.modifiers, clauses.sequence)
		if err != nil {
			log.Fatalf("privmail-query: building IMAP search string: %v", err)
		}
		log.Printf("privmail-query: IMAP search: %s", s)
	}

	files, err := query.BuildQueryShareFiles(clauses.keywords, clauses.fields, clauses.modifiers, clauses.sequence, *flagN)
	if err != nil {
		log.Fatalf("privmail-query: %v", err)
	}

	if err := os.MkdirAll(*flagOutDir, 0o700); err != nil {
		log.Fatalf("privmail-query: creating -out: %v", err)
	}
	for i, f := range files {
		data, err := yaml.Marshal(f)
		if err != nil {
			log.Fatalf("privmail-query: marshaling share %d: %v", i, err)
		}
		path := filepath.Join(*flagOutDir, fmt.Sprintf("query-share-%d.yaml", i))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			log.Fatalf("privmail-query: writing %s: %v", path, err)
		}
	}
	log.Printf("privmail-query: wrote %d query share file(s) to %s (uid=%s)", len(files), *flagOutDir, files[0].UID)
}
