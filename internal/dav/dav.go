// Package dav implements WebDAV style byte-stream access to content:
// reading and replacing objects as RFC822 records, creating
// collections and creating resources from uploaded files.
package dav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/filerep"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/security"
)

// DataID is the pseudo child through which a container's own record is
// read and written as a file
const DataID = "_data"

// Permission identifiers guarding writes
const (
	PermissionModify = "cmf.ModifyPortalContent"
	PermissionDelete = "zope2.DeleteObjects"
)

// DefaultChunkSize is the copy buffer size of Get and Put
const DefaultChunkSize = 1 << 16

// Options configures the service
type Options struct {
	// FolderType is the type created by MkCol
	FolderType string
	// ChunkSize is the copy buffer size
	ChunkSize int
	// Marshal configures the record streams
	Marshal filerep.Options
}

// Service performs DAV operations against the content tree
type Service struct {
	tool     *fti.Tool
	registry ContentTypeRegistry
	opts     Options
	log      zerolog.Logger
}

// NewService creates the DAV service. registry may be nil, in which case
// PUT to a missing resource is refused.
func NewService(tool *fti.Tool, registry ContentTypeRegistry, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Service{
		tool:     tool,
		registry: registry,
		opts:     opts,
		log:      logger.WithComponent("dav"),
	}
}

func (s *Service) env() *fti.Environment {
	return s.tool.Environment()
}

func (s *Service) allowed(ctx context.Context, permission string, obj *content.Content) bool {
	env := s.env()
	return security.Check(ctx, env.Checker, env.Permissions, permission, obj)
}

// Open returns a read stream over obj. The caller closes it.
func (s *Service) Open(ctx context.Context, obj *content.Content) *filerep.ReadFile {
	return filerep.NewReadFile(ctx, obj, s.opts.Marshal)
}

// GetSize returns the byte size of the object's record, 0 if it cannot
// be marshaled
func (s *Service) GetSize(ctx context.Context, obj *content.Content) int64 {
	rf := s.Open(ctx, obj)
	defer rf.Close()
	size, err := rf.Size()
	if err != nil {
		return 0
	}
	return size
}

// ContentType returns the MIME type of the object's record
func (s *Service) ContentType(ctx context.Context, obj *content.Content) string {
	rf := s.Open(ctx, obj)
	defer rf.Close()
	return rf.MimeType()
}

// Head sets the Content-Type and Content-Length headers of obj
func (s *Service) Head(ctx context.Context, obj *content.Content, h http.Header) error {
	rf := s.Open(ctx, obj)
	defer rf.Close()
	return setHeaders(rf, h)
}

// Get sets the response headers and streams the object's record to w
func (s *Service) Get(ctx context.Context, obj *content.Content, h http.Header, w io.Writer) (int64, error) {
	rf := s.Open(ctx, obj)
	defer rf.Close()

	if err := setHeaders(rf, h); err != nil {
		return 0, err
	}
	return io.CopyBuffer(w, rf, make([]byte, s.opts.ChunkSize))
}

func setHeaders(rf *filerep.ReadFile, h http.Header) error {
	size, err := rf.Size()
	if err != nil {
		return err
	}
	h.Set("Content-Type", fmt.Sprintf(`%s; charset="%s"`, rf.MimeType(), rf.Encoding()))
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	return nil
}

// Put replaces the fields of obj with the record read from body.
// contentType is the request Content-Type header and may be empty.
func (s *Service) Put(ctx context.Context, obj *content.Content, contentType string, body io.Reader) error {
	if !s.allowed(ctx, PermissionModify, obj) {
		return security.ForbiddenError{Permission: PermissionModify, Target: obj.PhysicalPath()}
	}

	wf := filerep.NewWriteFile(ctx, obj, s.opts.Marshal)
	if contentType != "" {
		if mimeType, params, err := mime.ParseMediaType(contentType); err == nil {
			wf.SetMimeType(mimeType)
			if charset := params["charset"]; charset != "" {
				wf.SetEncoding(charset)
			}
		}
	}

	_, copyErr := io.CopyBuffer(wf, body, make([]byte, s.opts.ChunkSize))
	// Close applies whatever was received, even after a read error
	if err := wf.Close(); err != nil {
		return err
	}
	if copyErr != nil {
		return fmt.Errorf("failed to read request body: %w", copyErr)
	}

	return s.env().Bus.Notify(ctx, obj, event.Modified{})
}

// MkCol creates a collection named name inside container
func (s *Service) MkCol(ctx context.Context, container *content.Content, name string) (*content.Content, error) {
	if s.opts.FolderType == "" {
		return nil, MethodNotAllowedError{Method: "MKCOL", Reason: "no folder type configured"}
	}
	obj, err := s.tool.Construct(ctx, container, s.opts.FolderType, name, nil)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("path", obj.PhysicalPath()).Msg("Collection created")
	return obj, nil
}

// PutFactory constructs, but does not add, the object a PUT to the
// missing resource name inside container creates. A nil object without
// error means no type applies.
func (s *Service) PutFactory(ctx context.Context, container *content.Content, name, contentType string, body []byte) (*content.Content, error) {
	// Finder resource forks
	if name == ".DS_Store" || strings.HasPrefix(name, "._") {
		return nil, UnauthorizedError{Reason: "refusing to store Mac OS X resource forks"}
	}

	if s.registry == nil {
		return nil, nil
	}
	typeID := s.registry.FindTypeName(name, contentType, body)
	if typeID == "" {
		return nil, nil
	}
	target, ok := s.tool.Get(typeID)
	if !ok {
		return nil, nil
	}

	if _, ok := s.tool.Get(container.PortalType()); ok {
		if !s.tool.AllowType(container.PortalType(), typeID) {
			return nil, UnauthorizedError{Reason: fmt.Sprintf("creating a %s object here is not allowed", typeID)}
		}
	}
	if !target.IsConstructionAllowed(ctx, container) {
		return nil, UnauthorizedError{Reason: fmt.Sprintf("creating a %s object here is not allowed", typeID)}
	}

	factory, err := s.tool.FactoryFor(typeID)
	if err != nil {
		return nil, err
	}
	obj, err := factory.Create(name)
	if err != nil {
		return nil, err
	}
	if err := s.env().Bus.Notify(ctx, obj, event.Created{}); err != nil {
		return nil, err
	}
	return obj, nil
}

// Create handles a PUT to the missing resource name inside container:
// the object is built by PutFactory, added, then initialized from body
func (s *Service) Create(ctx context.Context, container *content.Content, name, contentType string, body []byte) (*content.Content, error) {
	if !container.IsContainer() {
		return nil, content.NotContainerError{Path: container.PhysicalPath()}
	}
	if _, exists := container.Child(name); exists {
		return nil, content.ExistsError{Container: container.PhysicalPath(), ID: name}
	}

	obj, err := s.PutFactory(ctx, container, name, contentType, body)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, NoFactoryError{Name: name, ContentType: contentType}
	}

	if err := container.AddChild(obj); err != nil {
		return nil, err
	}
	added := event.Added{NewParent: container.PhysicalPath(), NewName: name}
	if err := s.env().Bus.Notify(ctx, obj, added); err != nil {
		return nil, err
	}

	if err := s.Put(ctx, obj, contentType, bytes.NewReader(body)); err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("path", obj.PhysicalPath()).
		Str("portal_type", obj.PortalType()).
		Msg("Resource created")
	return obj, nil
}

// Delete removes obj from its container
func (s *Service) Delete(ctx context.Context, obj *content.Content) error {
	parent := obj.Parent()
	if parent == nil {
		return MethodNotAllowedError{Method: http.MethodDelete, Reason: "cannot delete the site root"}
	}
	if !s.allowed(ctx, PermissionDelete, parent) {
		return security.ForbiddenError{Permission: PermissionDelete, Target: parent.PhysicalPath()}
	}

	oldParent := parent.PhysicalPath()
	oldPath := obj.PhysicalPath()
	if _, err := parent.RemoveChild(obj.ID()); err != nil {
		return err
	}
	ev := event.Removed{OldParent: oldParent, OldName: obj.ID()}
	if err := s.env().Bus.Notify(ctx, obj, ev); err != nil {
		return err
	}
	s.log.Debug().Str("path", oldPath).Msg("Resource deleted")
	return nil
}
