// Package senderproxy accepts locally-authenticated SMTP submission,
// splits the message into N secret shares (internal/privmail/assemble),
// and dials each configured destination directly to deliver its share --
// unlike smtp/smtpclient, which routes by MX record, a sender proxy's
// destinations are a small fixed set of known hosts.
package senderproxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/encryptogroup/PrivMail/internal/privmail/assemble"
	"github.com/encryptogroup/PrivMail/internal/privmail/auth"
	"github.com/encryptogroup/PrivMail/internal/privmail/config"
	"github.com/encryptogroup/PrivMail/internal/rfc5322"
	"github.com/encryptogroup/PrivMail/smtp/smtpclient"
	"github.com/encryptogroup/PrivMail/smtp/smtpserver"
)

// Server accepts local mail submission and fans each message's N shares
// out to the configured destinations. Recipients outside Config's
// KnownRecipients are relayed unshared via Relay, matching
// original_source/sender_client_proxy.py's fallback for recipients not
// participating in the share scheme.
type Server struct {
	Config    config.SenderConfig
	LocalHost string             // HELO/EHLO hostname used when dialing destinations
	Relay     *smtpclient.Client // used when Config.RelayPlain and a recipient is not in-scheme
	Auth      *auth.Authenticator
	Logf      func(format string, v ...interface{})

	// DialTimeout bounds each per-destination connection attempt.
	DialTimeout time.Duration
}

// NewMessage implements smtpserver.NewMessageFunc.
func (s *Server) NewMessage(remoteAddr net.Addr, from []byte, authToken uint64) (smtpserver.Msg, error) {
	return &submission{server: s, from: append([]byte(nil), from...)}, nil
}

// Authenticate adapts s.Auth to smtpserver's Auth signature.
func (s *Server) Authenticate(identity, user, pass []byte, remoteAddr string) uint64 {
	if s.Auth == nil {
		return 0
	}
	if err := s.Auth.Authenticate(remoteAddr, string(user), pass); err != nil {
		return 0
	}
	return 1
}

type submission struct {
	server *Server
	from   []byte
	rcpts  [][]byte
	buf    bytes.Buffer
}

func (m *submission) AddRecipient(addr []byte) (bool, error) {
	m.rcpts = append(m.rcpts, append([]byte(nil), addr...))
	return true, nil
}

func (m *submission) Write(line []byte) error {
	if n := len(line); n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
		m.buf.Write(line[:n-2])
		m.buf.WriteByte('\n')
		return nil
	}
	_, err := m.buf.Write(line)
	return err
}

func (m *submission) Cancel() {
	m.buf.Reset()
}

// Close parses the submitted message's Subject and body, shares it across
// the N destinations for in-scheme recipients, relays it unshared to any
// recipient outside the scheme (when Config.RelayPlain is set), and
// delivers everything concurrently. A destination or relay failure is
// logged; Close returns an error only when every delivery attempt failed,
// so a majority-available deployment still completes the send.
func (m *submission) Close() error {
	r := rfc5322.NewReader(bufio.NewReader(bytes.NewReader(m.buf.Bytes())))
	header, err := r.ReadMIMEHeader()
	if err != nil {
		return fmt.Errorf("senderproxy: parsing submission: %w", err)
	}
	body := string(m.buf.Bytes()[r.NumRead():])
	subject := string(header.Get(rfc5322.CanonicalKey([]byte("Subject"))))

	var sharedTos, plainTos []string
	for _, rcpt := range m.rcpts {
		to := string(rcpt)
		if m.server.Config.InScheme(to) {
			sharedTos = append(sharedTos, to)
			continue
		}
		if !m.server.Config.RelayPlain {
			return fmt.Errorf("senderproxy: %s is not a share-scheme recipient and relay_plain is disabled", to)
		}
		plainTos = append(plainTos, to)
	}

	var wg sync.WaitGroup
	var sharedErrs []error
	n := len(m.server.Config.Destinations)

	if len(sharedTos) > 0 {
		shares, err := assemble.Assemble(assemble.Message{Subject: subject, Body: body}, n)
		if err != nil {
			return fmt.Errorf("senderproxy: sharing message: %w", err)
		}
		sharedErrs = make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sharedErrs[i] = m.server.deliver(m.server.Config.Destinations[i], string(m.from), sharedTos, shares[i])
			}(i)
		}
	}

	var plainErr error
	if len(plainTos) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plainErr = m.server.relayPlain(string(m.from), plainTos, m.buf.Bytes())
		}()
	}

	wg.Wait()

	failures := 0
	for i, err := range sharedErrs {
		if err == nil {
			continue
		}
		failures++
		if m.server.Logf != nil {
			m.server.Logf("senderproxy: destination %s failed: %v", m.server.Config.Destinations[i].Name, err)
		}
	}
	if plainErr != nil {
		failures++
		if m.server.Logf != nil {
			m.server.Logf("senderproxy: plain relay failed: %v", plainErr)
		}
	}

	total := len(sharedErrs)
	if plainErr != nil || len(plainTos) > 0 {
		total++
	}
	if total > 0 && failures == total {
		return fmt.Errorf("senderproxy: all %d delivery attempt(s) failed", total)
	}
	return nil
}

// relayPlain delivers raw (unshared) mail to recipients outside the share
// scheme via s.Relay, matching original_source/sender_client_proxy.py's
// fallback for addresses not found in the destination-address map.
func (s *Server) relayPlain(from string, rcptTos []string, raw []byte) error {
	if s.Relay == nil {
		return fmt.Errorf("no plain relay client configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout())
	defer cancel()
	results, err := s.Relay.Send(ctx, from, rcptTos, bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return err
	}
	for _, res := range results {
		if !res.Success() {
			return fmt.Errorf("relay to %s: code=%d %s: %v", res.Recipient, res.Code, res.Details, res.Error)
		}
	}
	return nil
}

// deliver dials dest directly (no MX lookup -- dest.Addr is an explicit
// host:port, matching the teacher's smtp/smtpclient dial-and-STARTTLS
// sequence but against a fixed address instead of one found via MX).
func (s *Server) deliver(dest config.Destination, from string, rcptTos []string, out assemble.Outbound) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout())
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", dest.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", dest.Addr, err)
	}
	host, _, _ := net.SplitHostPort(dest.Addr)
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp handshake with %s: %w", dest.Addr, err)
	}
	defer client.Close()

	if err := client.Hello(s.LocalHost); err != nil {
		return fmt.Errorf("HELO to %s: %w", dest.Addr, err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{InsecureSkipVerify: true}); err != nil {
			return fmt.Errorf("STARTTLS to %s: %w", dest.Addr, err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM to %s: %w", dest.Addr, err)
	}
	for _, rcpt := range rcptTos {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s at %s: %w", rcpt, dest.Addr, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA to %s: %w", dest.Addr, err)
	}
	if err := writeMessage(w, out); err != nil {
		return fmt.Errorf("writing message to %s: %w", dest.Addr, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing DATA to %s: %w", dest.Addr, err)
	}
	return client.Quit()
}

func writeMessage(w io.Writer, out assemble.Outbound) error {
	if _, err := fmt.Fprintf(w, "Subject: %s\r\n\r\n", out.Subject); err != nil {
		return err
	}
	for _, line := range splitLines(out.Body) {
		if _, err := fmt.Fprintf(w, "%s\r\n", line); err != nil {
			return err
		}
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func (s *Server) dialTimeout() time.Duration {
	if s.DialTimeout == 0 {
		return 30 * time.Second
	}
	return s.DialTimeout
}
