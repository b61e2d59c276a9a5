package rfc822

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"mime/quotedprintable"
	"strings"
)

// FeedParser parses a message from incrementally supplied chunks. Header
// fields are parsed as soon as their line is complete; the body is
// buffered until Close. It accepts any input: lines that do not look like
// header fields end the header block, and a missing blank line leaves the
// body empty.
type FeedParser struct {
	msg     *Message
	headers headerBlock
	pending []byte
	inBody  bool
	body    bytes.Buffer
	n       int
}

// NewFeedParser creates a parser with no input
func NewFeedParser() *FeedParser {
	m := NewMessage()
	return &FeedParser{msg: m, headers: headerBlock{m: m}}
}

// Feed appends a chunk of raw input
func (p *FeedParser) Feed(data []byte) {
	p.n += len(data)
	if p.inBody {
		p.body.Write(data)
		return
	}

	buf := append(p.pending, data...)
	p.pending = nil
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			p.pending = buf
			return
		}
		done, inBody := p.headers.consume(buf[:i+1])
		if done {
			p.inBody = true
			if inBody {
				p.body.Write(buf)
			} else {
				p.body.Write(buf[i+1:])
			}
			return
		}
		buf = buf[i+1:]
	}
}

// Len returns the number of bytes fed so far
func (p *FeedParser) Len() int {
	return p.n
}

// Headers returns the header fields parsed so far. A field is complete
// once the line after it has been fed, since that line may fold it.
func (p *FeedParser) Headers() []Header {
	return p.msg.Headers()
}

// Close finishes the header block and the body and returns the message.
// The parser must not be fed after Close.
func (p *FeedParser) Close() *Message {
	if !p.inBody {
		if len(p.pending) > 0 {
			if done, inBody := p.headers.consume(p.pending); done && inBody {
				p.body.Write(p.pending)
			}
			p.pending = nil
		}
		p.headers.flush()
		p.inBody = true
	}
	finishBody(p.msg, p.body.Bytes())
	return p.msg
}

// Parse parses a complete message
func Parse(data []byte) *Message {
	m := NewMessage()
	finishBody(m, parseHeaders(m, data))
	return m
}

// finishBody splits a multipart body into parts or decodes the transfer
// encoding of a single body
func finishBody(m *Message, rest []byte) {
	if strings.HasPrefix(m.ContentType(), "multipart/") && m.Param("boundary") != "" {
		if parts, preamble, err := parseParts(rest, m.Param("boundary")); err == nil {
			m.Parts = parts
			m.Body = preamble
			return
		}
	}
	m.Body = decodeTransfer(m.Get(HeaderTransferEncoding), rest)
}

// headerBlock accumulates header fields one line at a time, joining
// folded continuation lines
type headerBlock struct {
	m     *Message
	name  string
	value strings.Builder
}

func (h *headerBlock) flush() {
	if h.name != "" {
		h.m.Add(h.name, decodeHeaderValue(strings.TrimSpace(h.value.String())))
	}
	h.name = ""
	h.value.Reset()
}

// consume handles one line of the header block. done reports the end of
// the block; inBody reports that the line itself starts the body.
func (h *headerBlock) consume(line []byte) (done, inBody bool) {
	trimmed := strings.TrimRight(string(line), "\r\n")

	if trimmed == "" {
		// Blank line: end of headers
		h.flush()
		return true, false
	}
	if (trimmed[0] == ' ' || trimmed[0] == '\t') && h.name != "" {
		// Continuation of a folded field
		h.value.WriteString(" ")
		h.value.WriteString(strings.TrimSpace(trimmed))
		return false, false
	}

	key, val, ok := strings.Cut(trimmed, ":")
	if !ok || !validFieldName(key) {
		// Not a header line: the body starts here
		h.flush()
		return true, true
	}
	h.flush()
	h.name = key
	h.value.WriteString(strings.TrimLeft(val, " \t"))
	return false, false
}

// parseHeaders consumes the header block and returns the remaining body
func parseHeaders(m *Message, data []byte) []byte {
	h := headerBlock{m: m}
	for len(data) > 0 {
		line, next := cutLine(data)
		if done, inBody := h.consume(line); done {
			if inBody {
				return data
			}
			return next
		}
		data = next
	}
	h.flush()
	return nil
}

func cutLine(data []byte) (line, rest []byte) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i+1], data[i+1:]
	}
	return data, nil
}

func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

func parseParts(body []byte, boundary string) ([]*Message, []byte, error) {
	var preamble []byte
	if i := bytes.Index(body, []byte("--"+boundary)); i > 0 {
		preamble = bytes.TrimRight(body[:i], "\r\n")
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	var parts []*Message
	for {
		part, err := reader.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		payload, err := io.ReadAll(part)
		if err != nil {
			return nil, nil, err
		}

		msg := NewMessage()
		for _, key := range []string{HeaderContentType, HeaderTransferEncoding, HeaderContentDisposition} {
			for _, v := range part.Header.Values(key) {
				msg.Add(key, decodeHeaderValue(v))
			}
		}
		msg.Body = decodeTransfer(msg.Get(HeaderTransferEncoding), payload)
		parts = append(parts, msg)
	}
	return parts, preamble, nil
}

// decodeTransfer undoes a content transfer encoding. Undecodable
// payloads are returned as they are.
func decodeTransfer(cte string, payload []byte) []byte {
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "base64":
		clean := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		out := make([]byte, base64.StdEncoding.DecodedLen(len(clean)))
		n, err := base64.StdEncoding.Decode(out, clean)
		if err != nil {
			return payload
		}
		return out[:n]
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return payload
		}
		return out
	}
	return payload
}
