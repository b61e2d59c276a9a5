package rfc822

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"

	"github.com/google/uuid"
)

// Header field names used by the marshaler
const (
	HeaderContentType        = "Content-Type"
	HeaderTransferEncoding   = "Content-Transfer-Encoding"
	HeaderContentDisposition = "Content-Disposition"
	HeaderMIMEVersion        = "MIME-Version"
	HeaderPortalType         = "Portal-Type"
)

// Header is one header field. Value is the decoded text.
type Header struct {
	Name  string
	Value string
}

// Message is an RFC 822 style record: ordered headers followed by a body
// or, for multipart messages, a list of parts. Body holds the payload
// after transfer decoding.
type Message struct {
	headers []Header
	Body    []byte
	Parts   []*Message
}

// NewMessage creates an empty message
func NewMessage() *Message {
	return &Message{}
}

// Headers returns the header fields in order
func (m *Message) Headers() []Header {
	return append([]Header(nil), m.headers...)
}

// Add appends a header field
func (m *Message) Add(name, value string) {
	m.headers = append(m.headers, Header{Name: name, Value: value})
}

// Set replaces every field named name with a single field, kept at the
// position of the first one
func (m *Message) Set(name, value string) {
	for i, h := range m.headers {
		if strings.EqualFold(h.Name, name) {
			m.headers[i].Value = value
			m.headers = append(m.headers[:i+1], deleteHeaders(m.headers[i+1:], name)...)
			return
		}
	}
	m.Add(name, value)
}

// Del removes every field named name
func (m *Message) Del(name string) {
	m.headers = deleteHeaders(m.headers, name)
}

func deleteHeaders(headers []Header, name string) []Header {
	out := headers[:0]
	for _, h := range headers {
		if !strings.EqualFold(h.Name, name) {
			out = append(out, h)
		}
	}
	return out
}

// Get returns the first value of name, matched case-insensitively
func (m *Message) Get(name string) string {
	for _, h := range m.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Values returns every value of name in order
func (m *Message) Values(name string) []string {
	var out []string
	for _, h := range m.headers {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// Has reports whether a field named name is present
func (m *Message) Has(name string) bool {
	for _, h := range m.headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// ContentType returns the media type of the message, "text/plain" when
// none is declared
func (m *Message) ContentType() string {
	mediatype, _, err := mime.ParseMediaType(m.Get(HeaderContentType))
	if err != nil || mediatype == "" {
		return "text/plain"
	}
	return mediatype
}

// Param returns a Content-Type parameter
func (m *Message) Param(name string) string {
	_, params, err := mime.ParseMediaType(m.Get(HeaderContentType))
	if err != nil {
		return ""
	}
	return params[strings.ToLower(name)]
}

// Charset returns the declared charset of the message, if any
func (m *Message) Charset() string {
	return m.Param("charset")
}

// Filename returns the filename parameter of the content disposition
func (m *Message) Filename() string {
	_, params, err := mime.ParseMediaType(m.Get(HeaderContentDisposition))
	if err != nil {
		return ""
	}
	return params["filename"]
}

// IsMultipart reports whether the message carries parts
func (m *Message) IsMultipart() bool {
	return len(m.Parts) > 0 || strings.HasPrefix(m.ContentType(), "multipart/")
}

// Attach appends a part and turns the message into a multipart message
func (m *Message) Attach(part *Message) {
	if !strings.HasPrefix(m.ContentType(), "multipart/") || m.Param("boundary") == "" {
		m.Set(HeaderContentType, mime.FormatMediaType("multipart/mixed", map[string]string{
			"boundary": newBoundary(),
		}))
	}
	m.Parts = append(m.Parts, part)
}

func newBoundary() string {
	return "===============" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WriteTo serializes the message. Lines end in "\n".
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	if err := m.write(cw); err != nil {
		return cw.n, err
	}
	return cw.n, cw.w.(*bufio.Writer).Flush()
}

func (m *Message) write(w *countingWriter) error {
	for _, h := range m.headers {
		if _, err := fmt.Fprintf(w, "%s: %s\n", h.Name, encodeHeaderValue(h.Value)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	if !m.IsMultipart() {
		return m.writeBody(w)
	}

	boundary := m.Param("boundary")
	if boundary == "" {
		return fmt.Errorf("multipart message without boundary")
	}
	if len(m.Body) > 0 {
		if _, err := w.Write(m.Body); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	for _, part := range m.Parts {
		if _, err := fmt.Fprintf(w, "--%s\n", boundary); err != nil {
			return err
		}
		if err := part.write(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "--%s--\n", boundary)
	return err
}

func (m *Message) writeBody(w io.Writer) error {
	switch strings.ToLower(m.Get(HeaderTransferEncoding)) {
	case "base64":
		enc := base64.StdEncoding.EncodeToString(m.Body)
		for len(enc) > 76 {
			if _, err := io.WriteString(w, enc[:76]+"\n"); err != nil {
				return err
			}
			enc = enc[76:]
		}
		if enc != "" {
			_, err := io.WriteString(w, enc+"\n")
			return err
		}
		return nil
	case "quoted-printable":
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write(m.Body); err != nil {
			return err
		}
		return qp.Close()
	default:
		_, err := w.Write(m.Body)
		return err
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
