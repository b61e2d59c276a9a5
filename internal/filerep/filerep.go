// Package filerep exposes content objects as RFC822 byte streams and
// applies such streams back onto objects.
package filerep

import (
	"time"

	"github.com/flowmesh/dexterity/internal/rfc822"
	"github.com/flowmesh/dexterity/internal/schema"
)

// Mime types reported by the streams
const (
	MimeTypeText      = "text/plain"
	MimeTypeComposite = "message/rfc822"
)

// Object is the content a stream reads from or writes to.
// *content.Content implements it.
type Object interface {
	rfc822.Object
	PortalType() string
	PhysicalPath() string
	Schemata() []*schema.Schema
}

// Observer receives marshaling activity
type Observer interface {
	Materialized(portalType string, size int64, spooled bool, duration time.Duration)
	Applied(portalType string, size int64, duration time.Duration)
}

// Options configures read and write streams
type Options struct {
	// Charset of marshaled records (default utf-8)
	Charset string
	// SpoolDir holds temporary files of large records (default OS temp dir)
	SpoolDir string
	// SpoolThreshold is the size above which records are spooled to disk.
	// Zero or less keeps every record in memory.
	SpoolThreshold int64
	// Observer is notified of marshaling activity when set
	Observer Observer
}

func (o Options) charset() string {
	if o.Charset == "" {
		return rfc822.DefaultCharset
	}
	return o.Charset
}

// primaryFields returns the distinct primary fields of schemata, first
// declaration wins
func primaryFields(schemata []*schema.Schema) []*schema.Field {
	seen := make(map[string]bool)
	var out []*schema.Field
	for _, s := range schemata {
		for _, f := range s.Fields() {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			if f.Primary {
				out = append(out, f)
			}
		}
	}
	return out
}

// messageMimeType is the stream type of a parsed or built message
func messageMimeType(msg *rfc822.Message) string {
	if msg.IsMultipart() {
		return MimeTypeComposite
	}
	return msg.ContentType()
}
