// Command privmail-receiverd runs one destination's SMTP receiver: it
// accepts inbound mail from a sender proxy, extracts any secret-share
// framing from the body, and stores the resulting share record to disk
// for later reconstruction by privmail-index or privmail-receiveragent.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/encryptogroup/PrivMail/internal/privmail/receiverd"
	"github.com/encryptogroup/PrivMail/smtp/smtpserver"
)

func main() {
	log.SetFlags(0)
	hostname, err := os.Hostname()
	if err != nil {
		log.Printf("cannot read hostname: %v, using localhost", err)
		hostname = "localhost"
	}

	flagAddr := flag.String("addr", ":2525", "SMTP listen address")
	flagHostname := flag.String("hostname", hostname, "SMTP hostname advertised in EHLO")
	flagDir := flag.String("dir", "", "directory to store received share records (required)")
	flagAllowNoTLS := flag.Bool("allow_no_tls", true, "accept mail without STARTTLS (set false once destinations carry real certificates)")
	flagAutocertHTTPAddr := flag.String("autocert_http_addr", "", "if set, serve the ACME HTTP-01 challenge here and fetch a Let's Encrypt certificate for -hostname")
	flag.Parse()

	if *flagDir == "" {
		log.Fatal("privmail-receiverd: -dir is required")
	}
	if err := os.MkdirAll(*flagDir, 0o700); err != nil {
		log.Fatalf("privmail-receiverd: creating -dir: %v", err)
	}

	rd := &receiverd.Server{
		Dir:  *flagDir,
		Logf: log.Printf,
	}

	srv := &smtpserver.Server{
		NewMessage: rd.NewMessage,
		Hostname:   *flagHostname,
		AllowNoTLS: *flagAllowNoTLS,
		Logf:       log.Printf,
	}

	if *flagAutocertHTTPAddr != "" {
		certManager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(*flagHostname),
			Cache:      autocert.DirCache(filepath.Join(*flagDir, "tls_certs")),
		}
		srv.TLSConfig = &tls.Config{GetCertificate: certManager.GetCertificate}
		go func() {
			err := http.ListenAndServe(*flagAutocertHTTPAddr, certManager.HTTPHandler(nil))
			if err != nil && err != http.ErrServerClosed {
				log.Fatalf("privmail-receiverd: autocert HTTP: %v", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", *flagAddr)
	if err != nil {
		log.Fatalf("privmail-receiverd: listen: %v", err)
	}
	log.Printf("privmail-receiverd: listening on %s, storing shares in %s", *flagAddr, *flagDir)

	errc := make(chan error, 1)
	go func() { errc <- srv.ServeSTARTTLS(ln) }()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case err := <-errc:
		log.Fatalf("privmail-receiverd: serve: %v", err)
	case <-interrupt:
		log.Printf("privmail-receiverd: shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("privmail-receiverd: shutdown: %v", err)
	}
}
