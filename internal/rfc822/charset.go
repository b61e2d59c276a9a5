package rfc822

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultCharset is used when neither the message nor the caller names one
const DefaultCharset = "utf-8"

// charsetAliases maps common spellings that neither the IANA registry nor
// the WHATWG label list carries
var charsetAliases = map[string]string{
	"latin-1": "iso-8859-1",
	"latin-9": "iso-8859-15",
	"utf":     "utf-8",
}

// normalizeCharset lowercases a charset label and folds underscores, so
// "Latin_1" and "UTF_8" resolve like their dashed forms
func normalizeCharset(charset string) string {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(charset)), "_", "-")
	if alias, ok := charsetAliases[name]; ok {
		return alias
	}
	return name
}

func isUTF8(charset string) bool {
	switch normalizeCharset(charset) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}

// lookupEncoding resolves charset against the IANA registry first and the
// WHATWG labels second. IANA names known to x/text but without an
// implementation come back as a nil encoding and fall through.
func lookupEncoding(charset string) (encoding.Encoding, error) {
	for _, name := range []string{strings.ToLower(strings.TrimSpace(charset)), normalizeCharset(charset)} {
		if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
			return enc, nil
		}
		if enc, err := htmlindex.Get(name); err == nil {
			return enc, nil
		}
	}
	return nil, UnknownCharsetError{Charset: charset}
}

// encodeText converts s to charset
func encodeText(s, charset string) ([]byte, error) {
	if isUTF8(charset) {
		return []byte(s), nil
	}
	enc, err := lookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("cannot encode text as %s: %w", charset, err)
	}
	return out, nil
}

// decodeText converts data in charset to a string
func decodeText(data []byte, charset string) (string, error) {
	if isUTF8(charset) {
		return string(data), nil
	}
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("cannot decode text as %s: %w", charset, err)
	}
	return string(out), nil
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := lookupEncoding(charset)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// encodeHeaderValue returns value as it appears on the wire. Values that
// are not printable ASCII become RFC 2047 encoded words.
func encodeHeaderValue(value string) string {
	return mime.QEncoding.Encode(DefaultCharset, value)
}

// decodeHeaderValue reverses encodeHeaderValue. Malformed encoded words
// are kept verbatim.
func decodeHeaderValue(raw string) string {
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func hasNonASCII(data []byte) bool {
	for _, c := range data {
		if c > 0x7e {
			return true
		}
	}
	return false
}
