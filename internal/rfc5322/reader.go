package rfc5322

import (
	"bufio"
	"bytes"
)

// Reader reads a MIME-style RFC 5322 header block off a buffered stream.
type Reader struct {
	R     *bufio.Reader
	buf   []byte
	nRead int
}

// NewReader returns a new Reader. To bound memory, r should wrap an
// io.LimitReader or an equivalent size-capped stream -- the SMTP DATA
// handler is responsible for that cap, not this reader.
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{R: r}
}

// NumRead returns the number of bytes consumed so far, assuming newlines
// are \n (the reader's caller normalizes CRLF to LF before buffering).
func (r *Reader) NumRead() int { return r.nRead }

func (r *Reader) readLineSlice() ([]byte, error) {
	var line []byte
	for {
		l, more, err := r.R.ReadLine()
		if err != nil {
			return nil, err
		}
		r.nRead += len(l)
		if !more {
			r.nRead++
		}
		if line == nil && !more {
			return l, nil
		}
		line = append(line, l...)
		if !more {
			break
		}
	}
	return line, nil
}

func (r *Reader) readContinuedLineSlice() ([]byte, error) {
	line, err := r.readLineSlice()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return line, nil
	}

	if r.R.Buffered() > 1 {
		peek, err := r.R.Peek(1)
		if err == nil && isASCIILetter(peek[0]) {
			return trim(line), nil
		}
	}

	r.buf = append(r.buf[:0], trim(line)...)
	for r.skipSpace() > 0 {
		line, err := r.readLineSlice()
		if err != nil {
			break
		}
		r.buf = append(r.buf, ' ')
		r.buf = append(r.buf, trim(line)...)
	}
	return r.buf, nil
}

func (r *Reader) skipSpace() int {
	n := 0
	for {
		c, err := r.R.ReadByte()
		if err != nil {
			break
		}
		if c != ' ' && c != '\t' {
			r.R.UnreadByte()
			break
		}
		n++
	}
	r.nRead += n
	return n
}

// ReadMIMEHeader reads a sequence of possibly-folded Key: Value lines up to
// the blank line that ends a header block, returning them as a Header.
// Unlike the general-purpose ancestor of this reader, values are never
// RFC-2047 decoded: PrivMail's share protocol treats Subject and body text
// as opaque bytes to be secret-shared, not as rendered display text, so
// charset-aware decoding has no role here (see Non-goals: no rich MIME
// rendering).
func (r *Reader) ReadMIMEHeader() (Header, error) {
	var strs [][]byte
	hint := r.upcomingHeaderNewlines()
	if hint > 0 {
		strs = make([][]byte, hint)
	}

	m := Header{Index: make(map[Key][][]byte)}

	if buf, err := r.R.Peek(1); err == nil && (buf[0] == ' ' || buf[0] == '\t') {
		line, err := r.readLineSlice()
		if err != nil {
			return m, err
		}
		return m, ProtocolError("malformed MIME header initial line: " + string(line))
	}

	for {
		kv, err := r.readContinuedLineSlice()
		if len(kv) == 0 {
			return m, err
		}

		i := bytes.IndexByte(kv, ':')
		if i < 0 {
			return m, ProtocolError("malformed MIME header line: " + string(kv))
		}
		endKey := i
		for endKey > 0 && kv[endKey-1] == ' ' {
			endKey--
		}
		key := CanonicalKey(kv[:endKey])
		if key == "" {
			continue
		}

		i++
		for i < len(kv) && (kv[i] == ' ' || kv[i] == '\t') {
			i++
		}
		value := make([]byte, len(kv)-i)
		copy(value, kv[i:])

		vv := m.Index[key]
		if vv == nil && len(strs) > 0 {
			vv, strs = strs[:1:1], strs[1:]
			vv[0] = value
			m.Index[key] = vv
		} else {
			m.Index[key] = append(vv, value)
		}
		m.Entries = append(m.Entries, HeaderEntry{Key: key, Value: value})

		if err != nil {
			return m, err
		}
	}
}

// upcomingHeaderNewlines approximates the number of newlines left in the
// buffered header, used only to pre-size the value slice pool.
func (r *Reader) upcomingHeaderNewlines() (n int) {
	r.R.Peek(1)
	s := r.R.Buffered()
	if s == 0 {
		return
	}
	peek, _ := r.R.Peek(s)
	for len(peek) > 0 {
		i := bytes.IndexByte(peek, '\n')
		if i < 3 {
			return
		}
		n++
		peek = peek[i+1:]
	}
	return
}
