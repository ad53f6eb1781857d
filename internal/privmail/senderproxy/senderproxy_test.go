package senderproxy

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/encryptogroup/PrivMail/internal/privmail/config"
	"github.com/encryptogroup/PrivMail/internal/privmail/framing"
	"github.com/encryptogroup/PrivMail/smtp/smtpserver"
	"github.com/encryptogroup/PrivMail/util/tlstest"
)

type capturedMsg struct {
	mu   sync.Mutex
	from string
	tos  []string
	body bytes.Buffer
}

func (m *capturedMsg) AddRecipient(addr []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tos = append(m.tos, string(addr))
	return true, nil
}

func (m *capturedMsg) Write(line []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body.Write(line)
	return nil
}

func (m *capturedMsg) Cancel() {}

func (m *capturedMsg) Close() error { return nil }

func (m *capturedMsg) snapshot() (string, []string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.from, append([]string(nil), m.tos...), m.body.String()
}

func startDestination(t *testing.T) (addr string, msg *capturedMsg, shutdown func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	msg = new(capturedMsg)
	srv := &smtpserver.Server{
		Hostname: "dest.test",
		NewMessage: func(_ net.Addr, from []byte, _ uint64) (smtpserver.Msg, error) {
			msg.mu.Lock()
			msg.from = string(from)
			msg.mu.Unlock()
			return msg, nil
		},
		AllowNoTLS: true,
		TLSConfig:  tlstest.ServerConfig,
		Logf:       t.Logf,
	}
	go srv.ServeSTARTTLS(ln)
	return ln.Addr().String(), msg, func() { srv.Shutdown(context.Background()) }
}

func TestSubmissionFansSharesOutToAllDestinations(t *testing.T) {
	addrA, msgA, stopA := startDestination(t)
	defer stopA()
	addrB, msgB, stopB := startDestination(t)
	defer stopB()

	time.Sleep(10 * time.Millisecond)

	srv := &Server{
		Config: config.SenderConfig{
			Destinations: []config.Destination{
				{Name: "alpha", Addr: addrA},
				{Name: "beta", Addr: addrB},
			},
		},
		LocalHost:   "sender.test",
		DialTimeout: 5 * time.Second,
		Logf:        t.Logf,
	}

	msg, err := srv.NewMessage(nil, []byte("alice@sender.test"), 0)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	m := msg.(*submission)
	if _, err := m.AddRecipient([]byte("bob@dest.test")); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}

	raw := "Subject: hello\r\n\r\nthis is a secret\r\n"
	for _, line := range strings.SplitAfter(raw, "\n") {
		if line == "" {
			continue
		}
		if err := m.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for name, msg := range map[string]*capturedMsg{"alpha": msgA, "beta": msgB} {
		from, tos, body := msg.snapshot()
		if from != "alice@sender.test" {
			t.Errorf("%s: from = %q", name, from)
		}
		if len(tos) != 1 || tos[0] != "bob@dest.test" {
			t.Errorf("%s: tos = %v", name, tos)
		}
		if !strings.Contains(body, framing.BodyBegin) {
			t.Errorf("%s: body missing share framing: %q", name, body)
		}
	}
}

func TestSubmissionRejectsOutOfSchemeRecipientWithoutRelay(t *testing.T) {
	addrA, _, stopA := startDestination(t)
	defer stopA()
	addrB, _, stopB := startDestination(t)
	defer stopB()

	time.Sleep(10 * time.Millisecond)

	srv := &Server{
		Config: config.SenderConfig{
			Destinations: []config.Destination{
				{Name: "alpha", Addr: addrA},
				{Name: "beta", Addr: addrB},
			},
			KnownRecipients: []string{"bob@dest.test"},
			RelayPlain:      false,
		},
		LocalHost: "sender.test",
		Logf:      t.Logf,
	}

	msg, err := srv.NewMessage(nil, []byte("alice@sender.test"), 0)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	m := msg.(*submission)
	if _, err := m.AddRecipient([]byte("carol@elsewhere.test")); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}
	if err := m.Write([]byte("Subject: hi\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.Write([]byte("\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.Close(); err == nil {
		t.Fatal("expected an error for an out-of-scheme recipient with relay_plain disabled")
	}
}
