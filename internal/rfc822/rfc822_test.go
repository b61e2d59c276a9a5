package rfc822

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/schema"
)

type record map[string]any

func (r record) Get(name string) (any, error) {
	v, ok := r[name]
	if !ok {
		return nil, assert.AnError
	}
	return v, nil
}

func (r record) Set(name string, value any) {
	r[name] = value
}

var documentSchema = schema.New("example.IDocument",
	&schema.Field{Name: "title", Type: schema.TypeTextLine},
	&schema.Field{Name: "rank", Type: schema.TypeInt},
	&schema.Field{Name: "published", Type: schema.TypeBool},
	&schema.Field{Name: "effective", Type: schema.TypeDate},
	&schema.Field{Name: "tags", Type: schema.TypeList},
	&schema.Field{Name: "body", Type: schema.TypeText, Primary: true, MimeType: "text/html"},
)

func render(t *testing.T, m *Message) string {
	t.Helper()
	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	return buf.String()
}

func TestConstructMessage_SinglePrimaryField(t *testing.T) {
	obj := record{
		"title":     "Hello",
		"rank":      int64(3),
		"published": true,
		"effective": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"tags":      []string{"a", "b"},
		"body":      "<p>Hi</p>",
	}

	msg, err := ConstructMessage(obj, []*schema.Schema{documentSchema}, "")
	require.NoError(t, err)

	expected := "title: Hello\n" +
		"rank: 3\n" +
		"published: True\n" +
		"effective: 2024-05-01\n" +
		"tags: a\n" +
		"tags: b\n" +
		"Content-Type: text/html; charset=utf-8\n" +
		"\n" +
		"<p>Hi</p>"
	assert.Equal(t, expected, render(t, msg))
	assert.Equal(t, "text/html", msg.ContentType())
	assert.False(t, msg.IsMultipart())
}

func TestConstructMessage_SkipsMissingValues(t *testing.T) {
	msg, err := ConstructMessage(record{"title": "Only"}, []*schema.Schema{documentSchema}, "")
	require.NoError(t, err)

	assert.Equal(t, "title: Only\nContent-Type: text/html; charset=utf-8\n\n", render(t, msg))
}

func TestConstructMessage_NoPrimaryField(t *testing.T) {
	s := schema.New("example.IPlain", &schema.Field{Name: "title", Type: schema.TypeTextLine})

	msg, err := ConstructMessage(record{"title": "Plain"}, []*schema.Schema{s}, "")
	require.NoError(t, err)

	assert.Equal(t, "title: Plain\n\n", render(t, msg))
	assert.Equal(t, "text/plain", msg.ContentType())
	assert.False(t, msg.IsMultipart())
}

func TestConstructMessage_MultiplePrimaryFields(t *testing.T) {
	s := schema.New("example.IPair",
		&schema.Field{Name: "title", Type: schema.TypeTextLine},
		&schema.Field{Name: "summary", Type: schema.TypeText, Primary: true},
		&schema.Field{Name: "data", Type: schema.TypeBytes, Primary: true, MimeType: "image/png"},
	)
	obj := record{"title": "Pair", "summary": "Short", "data": []byte{0x89, 'P', 'N', 'G'}}

	msg, err := ConstructMessage(obj, []*schema.Schema{s}, "")
	require.NoError(t, err)
	require.True(t, msg.IsMultipart())
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, "multipart/mixed", msg.ContentType())

	out := render(t, msg)
	boundary := msg.Param("boundary")
	require.NotEmpty(t, boundary)
	assert.Contains(t, out, "--"+boundary+"\nContent-Disposition: inline; name=summary\n")
	assert.True(t, strings.HasSuffix(out, "--"+boundary+"--\n"))

	parsed := Parse([]byte(out))
	require.Len(t, parsed.Parts, 2)
	assert.Equal(t, []byte("Short"), parsed.Parts[0].Body)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, parsed.Parts[1].Body)

	target := record{}
	require.NoError(t, InitializeObject(target, []*schema.Schema{s}, parsed, ""))
	assert.Equal(t, "Pair", target["title"])
	assert.Equal(t, "Short", target["summary"])
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, target["data"])
}

func TestRoundTrip(t *testing.T) {
	obj := record{
		"title":     "Grüße\nzweite Zeile",
		"rank":      int64(-7),
		"published": false,
		"effective": time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC),
		"tags":      []string{"x", "y z"},
		"body":      "Körper\nmit Zeilen\n",
	}

	msg, err := ConstructMessage(obj, []*schema.Schema{documentSchema}, "")
	require.NoError(t, err)
	out := render(t, msg)
	assert.Contains(t, out, "title: =?utf-8?q?")
	assert.Contains(t, out, "Content-Transfer-Encoding: 8bit\n")

	target := record{}
	require.NoError(t, InitializeObject(target, []*schema.Schema{documentSchema}, Parse([]byte(out)), ""))
	assert.Equal(t, obj, target)
}

func TestRoundTrip_Latin1(t *testing.T) {
	obj := record{"title": "Café", "body": "crème brûlée"}

	msg, err := ConstructMessage(obj, []*schema.Schema{documentSchema}, "iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("cr\xe8me br\xfbl\xe9e"), msg.Body)
	assert.Equal(t, "iso-8859-1", msg.Charset())

	target := record{}
	require.NoError(t, InitializeObject(target, []*schema.Schema{documentSchema}, Parse([]byte(render(t, msg))), ""))
	assert.Equal(t, obj, target)
}

func TestConstructMessage_UnknownCharset(t *testing.T) {
	_, err := ConstructMessage(record{"body": "x"}, []*schema.Schema{documentSchema}, "klingon")
	assert.IsType(t, UnknownCharsetError{}, err)
}

func TestDecodeText_CharsetLabels(t *testing.T) {
	tests := []struct {
		charset string
		data    []byte
		want    string
	}{
		{charset: "iso-8859-1", data: []byte("caf\xe9"), want: "café"},
		{charset: "ISO_8859-1", data: []byte("caf\xe9"), want: "café"},
		{charset: "latin-1", data: []byte("caf\xe9"), want: "café"},
		{charset: "Latin_1", data: []byte("caf\xe9"), want: "café"},
		{charset: "latin1", data: []byte("caf\xe9"), want: "café"},
		{charset: "iso8859_15", data: []byte("\xa4"), want: "€"},
		{charset: "cp1252", data: []byte("\x80"), want: "€"},
		{charset: "UTF_8", data: []byte("café"), want: "café"},
		{charset: "shift_jis", data: []byte("\x82\xa0"), want: "あ"},
		{charset: "MS_Kanji", data: []byte("\x82\xa0"), want: "あ"},
	}
	for _, tt := range tests {
		t.Run(tt.charset, func(t *testing.T) {
			got, err := decodeText(tt.data, tt.charset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := decodeText([]byte("x"), "x-klingon")
	assert.IsType(t, UnknownCharsetError{}, err)
}

func TestInitializeObject_LeavesAbsentFieldsAlone(t *testing.T) {
	target := record{"title": "Keep", "rank": int64(1)}
	msg := Parse([]byte("rank: 5\n\nnew body"))

	require.NoError(t, InitializeObject(target, []*schema.Schema{documentSchema}, msg, ""))
	assert.Equal(t, "Keep", target["title"])
	assert.Equal(t, int64(5), target["rank"])
	assert.Equal(t, "new body", target["body"])
}

func TestInitializeObject_BadValue(t *testing.T) {
	msg := Parse([]byte("rank: many\n\n"))

	err := InitializeObject(record{}, []*schema.Schema{documentSchema}, msg, "")
	assert.IsType(t, FieldValueError{}, err)
}

func TestInitializeObject_FailureLeavesObjectUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad header after good one", input: "title: New\nrank: many\n\nnew body"},
		{name: "bad body after good headers", input: "title: New\nrank: 5\nContent-Type: text/html; charset=x-klingon\n\nnew body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := record{"title": "Old", "rank": int64(1), "body": "old body"}
			err := InitializeObject(target, []*schema.Schema{documentSchema}, Parse([]byte(tt.input)), "")
			require.Error(t, err)
			assert.Equal(t, record{"title": "Old", "rank": int64(1), "body": "old body"}, target)
		})
	}
}

func TestInitializeObject_FirstDeclarationWins(t *testing.T) {
	behavior := schema.New("example.IBehavior",
		&schema.Field{Name: "title", Type: schema.TypeInt},
		&schema.Field{Name: "extra", Type: schema.TypeTextLine},
	)
	msg := Parse([]byte("title: Text\nextra: More\n\n"))

	target := record{}
	require.NoError(t, InitializeObject(target, []*schema.Schema{documentSchema, behavior}, msg, ""))
	assert.Equal(t, "Text", target["title"])
	assert.Equal(t, "More", target["extra"])
}

func TestParse_Tolerant(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		headers []Header
		body    string
	}{
		{
			name:    "crlf line endings",
			input:   "title: A\r\nrank: 2\r\n\r\nbody\r\n",
			headers: []Header{{"title", "A"}, {"rank", "2"}},
			body:    "body\r\n",
		},
		{
			name:    "folded header",
			input:   "title: first\n  second\n\n",
			headers: []Header{{"title", "first second"}},
			body:    "",
		},
		{
			name:    "no blank line",
			input:   "title: A\nrank: 2",
			headers: []Header{{"title", "A"}, {"rank", "2"}},
			body:    "",
		},
		{
			name:    "body without headers",
			input:   "just some text\nmore",
			headers: nil,
			body:    "just some text\nmore",
		},
		{
			name:    "empty",
			input:   "",
			headers: nil,
			body:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse([]byte(tt.input))
			assert.Equal(t, tt.headers, m.Headers())
			assert.Equal(t, tt.body, string(m.Body))
		})
	}
}

func TestParse_TransferEncodings(t *testing.T) {
	m := Parse([]byte("Content-Transfer-Encoding: base64\n\naGVs\nbG8=\n"))
	assert.Equal(t, "hello", string(m.Body))

	m = Parse([]byte("Content-Transfer-Encoding: quoted-printable\n\ncaf=C3=A9"))
	assert.Equal(t, "café", string(m.Body))
}

func TestFeedParser_Chunks(t *testing.T) {
	input := "title: Chunked\nrank: 4\n\nthe body"
	p := NewFeedParser()
	for i := 0; i < len(input); i += 3 {
		end := min(i+3, len(input))
		p.Feed([]byte(input[i:end]))
	}
	assert.Equal(t, len(input), p.Len())

	m := p.Close()
	assert.Equal(t, "Chunked", m.Get("title"))
	assert.Equal(t, "4", m.Get("RANK"))
	assert.Equal(t, "the body", string(m.Body))
}

func TestFeedParser_HeadersParsedAsFed(t *testing.T) {
	p := NewFeedParser()
	p.Feed([]byte("title: A\nra"))
	assert.Empty(t, p.Headers())

	p.Feed([]byte("nk: 2\n"))
	assert.Equal(t, []Header{{"title", "A"}}, p.Headers())

	p.Feed([]byte("\nbody"))
	assert.Equal(t, []Header{{"title", "A"}, {"rank", "2"}}, p.Headers())

	m := p.Close()
	assert.Equal(t, "body", string(m.Body))
}

func TestFeedParser_MatchesParseAtEveryChunkSize(t *testing.T) {
	inputs := []string{
		"title: A\r\nrank: 2\r\n\r\nbody\r\n",
		"title: first\n  second\n\n",
		"title: A\nrank: 2",
		"title: A\nnot a header\nmore",
		"Content-Transfer-Encoding: base64\n\naGVs\nbG8=\n",
		"Content-Type: multipart/mixed; boundary=XX\n\n--XX\nContent-Disposition: inline; name=body\n\none\n--XX--\n",
	}
	for _, input := range inputs {
		want := Parse([]byte(input))
		for size := 1; size <= len(input); size++ {
			p := NewFeedParser()
			for i := 0; i < len(input); i += size {
				p.Feed([]byte(input[i:min(i+size, len(input))]))
			}
			got := p.Close()
			require.Equal(t, want.Headers(), got.Headers(), "chunk size %d of %q", size, input)
			require.Equal(t, want.Body, got.Body, "chunk size %d of %q", size, input)
			require.Equal(t, len(want.Parts), len(got.Parts), "chunk size %d of %q", size, input)
		}
	}
}

func TestMessage_HeaderOperations(t *testing.T) {
	m := NewMessage()
	m.Add("a", "1")
	m.Add("b", "2")
	m.Add("A", "3")

	assert.Equal(t, []string{"1", "3"}, m.Values("a"))
	m.Set("a", "4")
	assert.Equal(t, []Header{{"a", "4"}, {"b", "2"}}, m.Headers())
	m.Del("B")
	assert.False(t, m.Has("b"))
	m.Set("c", "5")
	assert.Equal(t, "5", m.Get("c"))

	m.Set(HeaderContentDisposition, `attachment; filename="doc.txt"`)
	assert.Equal(t, "doc.txt", m.Filename())
}
