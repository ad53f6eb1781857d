// Package receiveragent polls each destination's IMAP mailbox, extracts
// the share framing from every message it finds there, and reconstructs
// the original messages once all N shares of a UID have arrived. It is
// the client-side counterpart to receiverd: receiverd stores a
// destination's own share to disk; receiveragent is what a recipient runs
// to gather the N shares spread across the destinations and recover the
// plaintext.
package receiveragent

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/encryptogroup/PrivMail/internal/privmail/config"
	"github.com/encryptogroup/PrivMail/internal/privmail/receive"
	"github.com/encryptogroup/PrivMail/internal/rfc5322"
)

// FetchAccount connects to one IMAP account, selects its mailbox, and
// returns receive.Envelope values for every message currently in it.
// Recipients are not available from a fetched message, only from
// Return-Path/Delivered-To headers a production deployment would add; the
// share protocol never needs RcptTos after delivery, so they are left
// empty here.
func FetchAccount(acc config.Account) ([]receive.Envelope, error) {
	c, err := client.DialTLS(acc.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("receiveragent: dial %s: %w", acc.Addr, err)
	}
	defer c.Logout()

	if err := c.Login(acc.Username, acc.Password); err != nil {
		return nil, fmt.Errorf("receiveragent: login to %s: %w", acc.Addr, err)
	}

	mailbox := acc.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	mbox, err := c.Select(mailbox, false)
	if err != nil {
		return nil, fmt.Errorf("receiveragent: select %s on %s: %w", mailbox, acc.Addr, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(1, mbox.Messages)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var envelopes []receive.Envelope
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		raw, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("receiveragent: reading message body on %s: %w", acc.Addr, err)
		}
		subject, body, err := splitMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("receiveragent: parsing message on %s: %w", acc.Addr, err)
		}
		from := ""
		if msg.Envelope != nil && len(msg.Envelope.From) > 0 {
			a := msg.Envelope.From[0]
			from = a.MailboxName + "@" + a.HostName
		}
		envelopes = append(envelopes, receive.Envelope{
			MailFrom: from,
			Subject:  subject,
			Body:     body,
		})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("receiveragent: fetch on %s: %w", acc.Addr, err)
	}
	return envelopes, nil
}

func splitMessage(raw []byte) (subject, body string, err error) {
	r := rfc5322.NewReader(bufio.NewReader(bytes.NewReader(normalizeCRLF(raw))))
	header, err := r.ReadMIMEHeader()
	if err != nil {
		return "", "", err
	}
	rest := normalizeCRLF(raw)[r.NumRead():]
	return string(header.Get(rfc5322.CanonicalKey([]byte("Subject")))), string(rest), nil
}

func normalizeCRLF(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' && i+1 < len(raw) && raw[i+1] == '\n' {
			continue
		}
		out = append(out, raw[i])
	}
	return out
}

// Gather fetches every account, extracts share records from each
// envelope it finds, and reconstructs every UID that collected exactly
// len(accounts) shares.
func Gather(accounts []config.Account, warn func(format string, v ...interface{})) ([]receive.Reconstructed, error) {
	mails, _, err := GatherStats(accounts, warn)
	return mails, err
}

// Stats times the three phases original_source/receive_mail.py reports:
// connecting and fetching each account's mailbox, combining (extracting
// share records from) the fetched envelopes, and reconstructing the
// complete messages from those records.
type Stats struct {
	ConnectFetch time.Duration
	Combine      time.Duration
	Reconstruct  time.Duration
}

// GatherStats is Gather with phase timing, for the receiver agent's
// -stats flag.
func GatherStats(accounts []config.Account, warn func(format string, v ...interface{})) ([]receive.Reconstructed, Stats, error) {
	var stats Stats

	fetchStart := time.Now()
	var allEnvelopes [][]receive.Envelope
	for _, acc := range accounts {
		envelopes, err := FetchAccount(acc)
		if err != nil {
			return nil, stats, err
		}
		allEnvelopes = append(allEnvelopes, envelopes)
	}
	stats.ConnectFetch = time.Since(fetchStart)

	combineStart := time.Now()
	seqMap := receive.NewSequenceMap()
	var records []receive.ShareRecord
	for i, acc := range accounts {
		for _, env := range allEnvelopes[i] {
			rec, ok, err := receive.Extract(env, seqMap, warn)
			if err != nil {
				return nil, stats, fmt.Errorf("receiveragent: extracting shares from %s: %w", acc.Addr, err)
			}
			if !ok {
				continue
			}
			records = append(records, rec)
		}
	}
	stats.Combine = time.Since(combineStart)

	reconstructStart := time.Now()
	mails, err := receive.Reconstruct(records, len(accounts), warn)
	stats.Reconstruct = time.Since(reconstructStart)
	if err != nil {
		return nil, stats, err
	}
	return mails, stats, nil
}
