package filerep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/rfc822"
	"github.com/flowmesh/dexterity/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// WriteFile is a forward-only byte stream that parses an RFC822 message
// and applies it to an object when closed
type WriteFile struct {
	ctx  context.Context
	obj  Object
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	parser   *rfc822.FeedParser
	mimeType string
	encoding string
	name     string
	written  int64
	closed   bool
	msg      *rfc822.Message
}

// NewWriteFile creates a write stream over obj
func NewWriteFile(ctx context.Context, obj Object, opts Options) *WriteFile {
	return &WriteFile{
		ctx:      ctx,
		obj:      obj,
		opts:     opts,
		log:      logger.WithPortalType("filerep", obj.PortalType()),
		parser:   rfc822.NewFeedParser(),
		encoding: opts.charset(),
	}
}

// Write feeds data to the parser
func (w *WriteFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, InvalidStateError{Op: "write", Reason: "file is closed"}
	}
	w.parser.Feed(p)
	w.written += int64(len(p))
	return len(p), nil
}

// WriteLines writes each line in turn
func (w *WriteFile) WriteLines(lines [][]byte) error {
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Truncate discards everything written so far. Only truncation to zero
// is supported.
func (w *WriteFile) Truncate(size int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if size != 0 {
		return NotImplementedError{Op: "truncate", Reason: "size must be 0, partial truncation is not supported"}
	}
	if w.closed {
		return InvalidStateError{Op: "truncate", Reason: "file is closed"}
	}
	w.parser = rfc822.NewFeedParser()
	w.written = 0
	return nil
}

// Seek is not supported on write streams
func (w *WriteFile) Seek(int64, int) (int64, error) {
	return 0, NotImplementedError{Op: "seek", Reason: "write streams are forward-only"}
}

// Tell returns the number of bytes written
func (w *WriteFile) Tell() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Flush is a no-op; data is applied on Close
func (w *WriteFile) Flush() error {
	return nil
}

// Close parses the written message and applies it to the object.
// Closing twice is a no-op.
func (w *WriteFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	start := time.Now()
	_, span := tracing.StartContentSpan(w.ctx, "filerep", "write", w.obj.PortalType(), w.obj.PhysicalPath())

	w.msg = w.parser.Close()
	span.SetAttributes(
		attribute.Int64(tracing.AttrBytesWritten, w.written),
		attribute.String(tracing.AttrMimeType, messageMimeType(w.msg)),
		attribute.String(tracing.AttrCharset, w.encoding),
	)

	if err := rfc822.InitializeObject(w.obj, w.obj.Schemata(), w.msg, w.encoding); err != nil {
		err = fmt.Errorf("failed to apply record to %s: %w", w.obj.PhysicalPath(), err)
		tracing.EndSpan(span, err)
		return err
	}
	tracing.EndSpan(span, nil)

	w.log.Debug().
		Str("path", w.obj.PhysicalPath()).
		Int64("size", w.written).
		Msg("Record applied")
	if w.opts.Observer != nil {
		w.opts.Observer.Applied(w.obj.PortalType(), w.written, time.Since(start))
	}
	return nil
}

// Closed reports whether Close was called
func (w *WriteFile) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// MimeType returns the type set by the caller until the message is
// parsed, then the type of the message
func (w *WriteFile) MimeType() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.msg == nil {
		return w.mimeType
	}
	return messageMimeType(w.msg)
}

// SetMimeType records the declared type of the incoming data
func (w *WriteFile) SetMimeType(mimeType string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mimeType = mimeType
}

// Encoding returns the charset applied to the message
func (w *WriteFile) Encoding() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.msg != nil && w.msg.Charset() != "" {
		return w.msg.Charset()
	}
	return w.encoding
}

// SetEncoding sets the charset used when the message declares none
func (w *WriteFile) SetEncoding(charset string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if charset != "" {
		w.encoding = charset
	}
}

// Name returns the filename of the message, or the name set by the caller
func (w *WriteFile) Name() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.msg != nil {
		if name := w.msg.Filename(); name != "" {
			return name
		}
	}
	return w.name
}

// SetName records the name of the incoming data
func (w *WriteFile) SetName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.name = name
}
