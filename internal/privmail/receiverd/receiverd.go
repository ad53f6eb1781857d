// Package receiverd wires the RFC-5322 reader, the share extractor, and
// the on-disk share store into an smtpserver.Server: one of PrivMail's N
// destinations, listening for a share of each message and persisting it
// under a UID it groups with the other N-1 shares later.
package receiverd

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/encryptogroup/PrivMail/internal/privmail/receive"
	"github.com/encryptogroup/PrivMail/internal/privmail/store"
	"github.com/encryptogroup/PrivMail/internal/rfc5322"
	"github.com/encryptogroup/PrivMail/smtp/smtpserver"
)

// Server receives one destination's share of each outgoing message over
// SMTP and stores it to disk, keyed by a unique, timestamped filename
// under Dir. It keeps the process-wide UID->sequence map required to
// group shares together again at reconstruction time.
type Server struct {
	Dir  string // directory share records are written to
	Logf func(format string, v ...interface{})

	mu  sync.Mutex
	seq *receive.SequenceMap
}

// NewMessage implements smtpserver.NewMessageFunc: it is invoked once per
// MAIL FROM and returns the Msg that accumulates RCPT TO and DATA for that
// transaction.
func (s *Server) NewMessage(remoteAddr net.Addr, from []byte, authToken uint64) (smtpserver.Msg, error) {
	s.mu.Lock()
	if s.seq == nil {
		s.seq = receive.NewSequenceMap()
	}
	s.mu.Unlock()

	return &incoming{
		server: s,
		from:   append([]byte(nil), from...),
	}, nil
}

type incoming struct {
	server *Server
	from   []byte
	rcpts  [][]byte
	buf    bytes.Buffer
}

func (m *incoming) AddRecipient(addr []byte) (bool, error) {
	m.rcpts = append(m.rcpts, append([]byte(nil), addr...))
	return true, nil
}

// Write stores one DATA line, normalizing its CRLF line ending to a bare
// LF: rfc5322.Reader counts bytes assuming LF-terminated lines, and SMTP
// hands us CRLF ones.
func (m *incoming) Write(line []byte) error {
	if n := len(line); n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
		m.buf.Write(line[:n-2])
		m.buf.WriteByte('\n')
		return nil
	}
	_, err := m.buf.Write(line)
	return err
}

func (m *incoming) Cancel() {
	m.buf.Reset()
}

// Close parses the accumulated DATA as an RFC-5322 message, extracts any
// share blocks from its body, and persists the resulting record. Mail that
// carries no share framing (ok == false from receive.Extract) still gets
// its raw subject/body persisted, with no UID or sequence number assigned:
// receiverd always writes one record per message, shared or not.
func (m *incoming) Close() error {
	r := rfc5322.NewReader(bufio.NewReader(bytes.NewReader(m.buf.Bytes())))
	header, err := r.ReadMIMEHeader()
	if err != nil {
		return fmt.Errorf("receiverd: parsing message: %w", err)
	}
	body := m.buf.Bytes()[r.NumRead():]

	rcptTos := make([]string, len(m.rcpts))
	for i, rcpt := range m.rcpts {
		rcptTos[i] = string(rcpt)
	}

	env := receive.Envelope{
		MailFrom: string(m.from),
		RcptTos:  rcptTos,
		Subject:  string(header.Get(rfc5322.CanonicalKey([]byte("Subject")))),
		Body:     string(body),
	}

	rec, ok, err := receive.Extract(env, m.server.seq, m.server.Logf)
	if err != nil {
		return fmt.Errorf("receiverd: extracting shares: %w", err)
	}
	if !ok && m.server.Logf != nil {
		m.server.Logf("receiverd: mail_from=%s carries no share framing, storing raw", m.from)
	}

	path, err := store.SaveShareRecord(m.server.Dir, rec, time.Now())
	if err != nil {
		return fmt.Errorf("receiverd: saving share record: %w", err)
	}
	if m.server.Logf != nil {
		m.server.Logf("receiverd: stored uid=%s seq=%d -> %s", rec.UID, rec.SequenceNumber, path)
	}
	return nil
}
