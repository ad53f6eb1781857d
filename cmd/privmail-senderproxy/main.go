// Command privmail-senderproxy accepts locally-authenticated SMTP
// submission and fans each message out as N secret shares to the
// configured destinations.
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

	"github.com/encryptogroup/PrivMail/internal/privmail/auth"
	"github.com/encryptogroup/PrivMail/internal/privmail/config"
	"github.com/encryptogroup/PrivMail/internal/privmail/senderproxy"
	"github.com/encryptogroup/PrivMail/smtp/smtpclient"
	"github.com/encryptogroup/PrivMail/smtp/smtpserver"
	"github.com/encryptogroup/PrivMail/util/throttle"
)

func main() {
	log.SetFlags(0)
	hostname, err := os.Hostname()
	if err != nil {
		log.Printf("cannot read hostname: %v, using localhost", err)
		hostname = "localhost"
	}

	flagAddr := flag.String("addr", ":2526", "SMTP submission listen address")
	flagHostname := flag.String("hostname", hostname, "SMTP hostname advertised in EHLO and used dialing destinations")
	flagConfig := flag.String("config", "", "path to sender config YAML (destinations, required)")
	flagCredentials := flag.String("credentials", "", "path to submission credentials YAML (required)")
	flagCertDir := flag.String("cert_dir", "", "directory to cache Let's Encrypt certificates in (required when -autocert_http_addr is set)")
	flagAutocertHTTPAddr := flag.String("autocert_http_addr", "", "if set, serve the ACME HTTP-01 challenge here and fetch a Let's Encrypt certificate for -hostname")
	flag.Parse()

	if *flagConfig == "" || *flagCredentials == "" {
		log.Fatal("privmail-senderproxy: -config and -credentials are required")
	}

	cfg, err := config.LoadSenderConfig(*flagConfig)
	if err != nil {
		log.Fatalf("privmail-senderproxy: %v", err)
	}
	creds, err := config.LoadCredentials(*flagCredentials)
	if err != nil {
		log.Fatalf("privmail-senderproxy: %v", err)
	}

	a := &auth.Authenticator{
		Credentials: creds,
		Throttle:    new(throttle.Throttle),
		Logf:        log.Printf,
	}

	sp := &senderproxy.Server{
		Config:    cfg,
		LocalHost: *flagHostname,
		Auth:      a,
		Logf:      log.Printf,
	}
	if cfg.RelayPlain {
		sp.Relay = smtpclient.NewClient(*flagHostname, 8)
	}

	srv := &smtpserver.Server{
		NewMessage: sp.NewMessage,
		Hostname:   *flagHostname,
		Auth:       sp.Authenticate,
		MustAuth:   true,
		AllowNoTLS: true, // submission happens over a trusted local network; see DESIGN.md
		Logf:       log.Printf,
	}

	if *flagAutocertHTTPAddr != "" {
		if *flagCertDir == "" {
			log.Fatal("privmail-senderproxy: -cert_dir is required with -autocert_http_addr")
		}
		certManager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(*flagHostname),
			Cache:      autocert.DirCache(*flagCertDir),
		}
		srv.TLSConfig = &tls.Config{GetCertificate: certManager.GetCertificate}
		go func() {
			err := http.ListenAndServe(*flagAutocertHTTPAddr, certManager.HTTPHandler(nil))
			if err != nil && err != http.ErrServerClosed {
				log.Fatalf("privmail-senderproxy: autocert HTTP: %v", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", *flagAddr)
	if err != nil {
		log.Fatalf("privmail-senderproxy: listen: %v", err)
	}
	log.Printf("privmail-senderproxy: listening on %s, fanning out to %d destinations", *flagAddr, len(cfg.Destinations))

	errc := make(chan error, 1)
	go func() { errc <- srv.ServeSTARTTLS(ln) }()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case err := <-errc:
		log.Fatalf("privmail-senderproxy: serve: %v", err)
	case <-interrupt:
		log.Printf("privmail-senderproxy: shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("privmail-senderproxy: shutdown: %v", err)
	}
}
