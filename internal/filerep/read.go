package filerep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/rfc822"
	"github.com/flowmesh/dexterity/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// readLineChunk is the read size used while scanning for a line end
const readLineChunk = 256

// ReadFile is a seekable byte stream of an object marshaled as an RFC822
// message. The message is built on first use and fully serialized before
// the first byte is returned, so Size is exact from the start.
type ReadFile struct {
	ctx  context.Context
	obj  Object
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	msg    *rfc822.Message
	spool  *spool
	pos    int64
	closed bool
}

// NewReadFile creates a read stream over obj
func NewReadFile(ctx context.Context, obj Object, opts Options) *ReadFile {
	return &ReadFile{
		ctx:  ctx,
		obj:  obj,
		opts: opts,
		log:  logger.WithPortalType("filerep", obj.PortalType()),
	}
}

// Message returns the marshaled message, building it on first use
func (r *ReadFile) Message() (*rfc822.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message()
}

func (r *ReadFile) message() (*rfc822.Message, error) {
	if r.msg != nil {
		return r.msg, nil
	}
	msg, err := rfc822.ConstructMessage(r.obj, r.obj.Schemata(), r.opts.charset())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", r.obj.PhysicalPath(), err)
	}
	msg.Set(rfc822.HeaderPortalType, r.obj.PortalType())
	r.msg = msg
	return msg, nil
}

// stream serializes the message into the spool on first use
func (r *ReadFile) stream() (*spool, error) {
	if r.closed {
		return nil, InvalidStateError{Op: "read", Reason: "file is closed"}
	}
	if r.spool != nil {
		return r.spool, nil
	}

	start := time.Now()
	_, span := tracing.StartContentSpan(r.ctx, "filerep", "read", r.obj.PortalType(), r.obj.PhysicalPath())

	s, err := r.materialize()
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64(tracing.AttrBytesRead, s.size),
		attribute.Bool(tracing.AttrSpooled, s.spooled()),
		attribute.String(tracing.AttrMimeType, messageMimeType(r.msg)),
	)
	tracing.EndSpan(span, nil)

	if s.spooled() {
		r.log.Debug().
			Str("path", r.obj.PhysicalPath()).
			Int64("size", s.size).
			Msg("Record spooled to disk")
	}
	if r.opts.Observer != nil {
		r.opts.Observer.Materialized(r.obj.PortalType(), s.size, s.spooled(), time.Since(start))
	}

	r.spool = s
	return s, nil
}

func (r *ReadFile) materialize() (*spool, error) {
	msg, err := r.message()
	if err != nil {
		return nil, err
	}
	s := newSpool(r.opts.SpoolDir, r.opts.SpoolThreshold)
	if _, err := msg.WriteTo(s); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to serialize %s: %w", r.obj.PhysicalPath(), err)
	}
	if err := s.rewind(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// MimeType returns the stream type. Before the message is built it is
// predicted from the primary fields of the object's schemata.
func (r *ReadFile) MimeType() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.msg != nil {
		return messageMimeType(r.msg)
	}
	primary := primaryFields(r.obj.Schemata())
	switch len(primary) {
	case 0:
		return MimeTypeText
	case 1:
		return primary[0].BodyMimeType()
	default:
		return MimeTypeComposite
	}
}

// Encoding returns the charset of the message
func (r *ReadFile) Encoding() string {
	msg, err := r.Message()
	if err != nil || msg.Charset() == "" {
		return rfc822.DefaultCharset
	}
	return msg.Charset()
}

// Name returns the filename declared by the message, if any
func (r *ReadFile) Name() string {
	msg, err := r.Message()
	if err != nil {
		return ""
	}
	return msg.Filename()
}

// Size returns the byte length of the serialized record
func (r *ReadFile) Size() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.stream()
	if err != nil {
		return 0, err
	}
	return s.size, nil
}

// Read implements io.Reader
func (r *ReadFile) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.stream()
	if err != nil {
		return 0, err
	}
	n, err := s.reader.Read(p)
	r.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker
func (r *ReadFile) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.stream()
	if err != nil {
		return 0, err
	}
	pos, err := s.reader.Seek(offset, whence)
	if err != nil {
		return r.pos, err
	}
	r.pos = pos
	return pos, nil
}

// Tell returns the current read offset
func (r *ReadFile) Tell() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.stream(); err != nil {
		return 0, err
	}
	return r.pos, nil
}

// ReadLine returns the next line including its terminating newline. The
// last line may lack one; io.EOF is returned once the stream is drained.
func (r *ReadFile) ReadLine() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.stream()
	if err != nil {
		return nil, err
	}

	var line []byte
	chunk := make([]byte, readLineChunk)
	for {
		n, err := s.reader.Read(chunk)
		if i := bytes.IndexByte(chunk[:n], '\n'); i >= 0 {
			line = append(line, chunk[:i+1]...)
			// Give back what was read past the newline
			if extra := int64(n - i - 1); extra > 0 {
				if _, serr := s.reader.Seek(-extra, io.SeekCurrent); serr != nil {
					return nil, serr
				}
			}
			r.pos += int64(len(line))
			return line, nil
		}
		line = append(line, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			r.pos += int64(len(line))
			if len(line) == 0 {
				return nil, io.EOF
			}
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close releases the spool. Closing twice is a no-op.
func (r *ReadFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.spool == nil {
		return nil
	}
	return r.spool.Close()
}

// Closed reports whether Close was called
func (r *ReadFile) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
