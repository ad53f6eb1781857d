// Command privmail-receiveragent polls each destination's IMAP mailbox,
// gathers the secret shares that have arrived, and prints the original
// messages it can fully reconstruct.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/encryptogroup/PrivMail/internal/privmail/config"
	"github.com/encryptogroup/PrivMail/internal/privmail/receiveragent"
)

func main() {
	log.SetFlags(0)

	flagConfig := flag.String("config", "", "path to receiver config YAML listing one IMAP account per destination (required)")
	flagStats := flag.String("stats", "", "if set, write a YAML timing report (connect+fetch, combine, reconstruct durations) to this path")
	flag.Parse()

	if *flagConfig == "" {
		log.Fatal("privmail-receiveragent: -config is required")
	}

	cfg, err := config.LoadReceiverConfig(*flagConfig)
	if err != nil {
		log.Fatalf("privmail-receiveragent: %v", err)
	}

	mails, stats, err := receiveragent.GatherStats(cfg.Accounts, log.Printf)
	if err != nil {
		log.Fatalf("privmail-receiveragent: %v", err)
	}

	for _, m := range mails {
		fmt.Printf("--- message uid=%s seq=%d ---\n", m.UID, m.SequenceNumber)
		fmt.Printf("Subject: %s\n\n%s\n", m.Subject, m.Body)
	}
	log.Printf("privmail-receiveragent: reconstructed %d message(s) across %d account(s)", len(mails), len(cfg.Accounts))

	if *flagStats != "" {
		data, err := yaml.Marshal(stats)
		if err != nil {
			log.Fatalf("privmail-receiveragent: marshaling stats: %v", err)
		}
		if err := os.WriteFile(*flagStats, data, 0o600); err != nil {
			log.Fatalf("privmail-receiveragent: writing stats: %v", err)
		}
	}
}
