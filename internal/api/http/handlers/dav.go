package handlers

import (
	"encoding/xml"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/flowmesh/dexterity/internal/api/validation"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/dav"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/site"
)

// maxUploadSize bounds PUT bodies that create new resources
const maxUploadSize = 64 << 20

// DAVHandlers serves the WebDAV surface of the content tree
type DAVHandlers struct {
	site   *site.Site
	prefix string
}

// NewDAVHandlers creates DAV handlers. prefix is the URL path under
// which the tree is mounted and is used to build PROPFIND hrefs.
func NewDAVHandlers(s *site.Site, prefix string) *DAVHandlers {
	return &DAVHandlers{site: s, prefix: strings.TrimSuffix(prefix, "/")}
}

// ServeDAV dispatches a DAV request for the tree path p
func (h *DAVHandlers) ServeDAV(w http.ResponseWriter, r *http.Request, p string) {
	if strings.Contains(p, "..") {
		WriteError(w, validation.ValidationError{Field: "path", Reason: "must not contain '..'"})
		return
	}

	target, err := dav.Resolve(h.site.Root(), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := dav.CheckMethod(target, r.Method); err != nil {
		WriteError(w, err)
		return
	}

	switch r.Method {
	case http.MethodOptions:
		h.options(w, target)
	case http.MethodGet:
		h.get(w, r, target)
	case http.MethodHead:
		h.head(w, r, target)
	case http.MethodPut:
		h.put(w, r, target)
	case dav.MethodMkCol:
		h.mkcol(w, r, target)
	case http.MethodDelete:
		h.delete(w, r, target)
	case dav.MethodPropFind:
		h.propfind(w, r, target, p)
	default:
		w.Header().Set("Allow", strings.Join(dav.Allow(target), ", "))
		WriteError(w, dav.MethodNotAllowedError{Method: r.Method, Reason: "not supported"})
	}
}

func (h *DAVHandlers) canView(r *http.Request, obj *content.Content) error {
	env := h.site.Environment()
	if !security.Check(r.Context(), env.Checker, env.Permissions, PermissionView, obj) {
		return security.ForbiddenError{Permission: PermissionView, Target: obj.PhysicalPath()}
	}
	return nil
}

func (h *DAVHandlers) options(w http.ResponseWriter, target dav.Target) {
	w.Header().Set("Allow", strings.Join(dav.Allow(target), ", "))
	w.Header().Set("DAV", "1")
	w.WriteHeader(http.StatusOK)
}

func (h *DAVHandlers) get(w http.ResponseWriter, r *http.Request, target dav.Target) {
	if err := h.canView(r, target.Object); err != nil {
		WriteError(w, err)
		return
	}
	n, err := h.site.DAV().Get(r.Context(), target.Object, w.Header(), w)
	if err != nil && n == 0 {
		WriteError(w, err)
	}
}

func (h *DAVHandlers) head(w http.ResponseWriter, r *http.Request, target dav.Target) {
	if err := h.canView(r, target.Object); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.site.DAV().Head(r.Context(), target.Object, w.Header()); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *DAVHandlers) put(w http.ResponseWriter, r *http.Request, target dav.Target) {
	contentType := r.Header.Get("Content-Type")

	if target.Missing == "" {
		if err := h.site.DAV().Put(r.Context(), target.Object, contentType, r.Body); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		WriteError(w, validation.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	obj, err := h.site.DAV().Create(r.Context(), target.Object, target.Missing, contentType, body)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Location", h.href(obj.PhysicalPath(), false))
	w.WriteHeader(http.StatusCreated)
}

func (h *DAVHandlers) mkcol(w http.ResponseWriter, r *http.Request, target dav.Target) {
	if r.ContentLength > 0 {
		WriteError(w, dav.MethodNotAllowedError{Method: dav.MethodMkCol, Reason: "request bodies are not supported"})
		return
	}
	obj, err := h.site.DAV().MkCol(r.Context(), target.Object, target.Missing)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Location", h.href(obj.PhysicalPath(), true))
	w.WriteHeader(http.StatusCreated)
}

func (h *DAVHandlers) delete(w http.ResponseWriter, r *http.Request, target dav.Target) {
	if err := h.site.Delete(r.Context(), target.Object); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// multistatus is the body of a PROPFIND response
type multistatus struct {
	XMLName   xml.Name   `xml:"D:multistatus"`
	Namespace string     `xml:"xmlns:D,attr"`
	Responses []response `xml:"D:response"`
}

type response struct {
	Href     string   `xml:"D:href"`
	Propstat propstat `xml:"D:propstat"`
}

type propstat struct {
	Prop   prop   `xml:"D:prop"`
	Status string `xml:"D:status"`
}

type prop struct {
	DisplayName   string       `xml:"D:displayname"`
	ResourceType  resourceType `xml:"D:resourcetype"`
	ContentType   string       `xml:"D:getcontenttype,omitempty"`
	ContentLength int64        `xml:"D:getcontentlength,omitempty"`
	LastModified  string       `xml:"D:getlastmodified,omitempty"`
	CreationDate  string       `xml:"D:creationdate,omitempty"`
}

type resourceType struct {
	Collection *struct{} `xml:"D:collection"`
}

func (h *DAVHandlers) href(p string, collection bool) string {
	href := h.prefix + p
	if collection && !strings.HasSuffix(href, "/") {
		href += "/"
	}
	return href
}

func (h *DAVHandlers) entry(r *http.Request, name, p string, obj *content.Content, collection bool) response {
	pr := prop{
		DisplayName:  name,
		LastModified: obj.ModificationTime().UTC().Format(http.TimeFormat),
		CreationDate: obj.Created().UTC().Format(time.RFC3339),
	}
	if collection {
		pr.ResourceType.Collection = &struct{}{}
	} else {
		pr.ContentType = h.site.DAV().ContentType(r.Context(), obj)
		pr.ContentLength = h.site.DAV().GetSize(r.Context(), obj)
	}
	return response{
		Href:     h.href(p, collection),
		Propstat: propstat{Prop: pr, Status: "HTTP/1.1 200 OK"},
	}
}

func (h *DAVHandlers) propfind(w http.ResponseWriter, r *http.Request, target dav.Target, p string) {
	if err := h.canView(r, target.Object); err != nil {
		WriteError(w, err)
		return
	}

	p = "/" + strings.Trim(p, "/")
	ms := multistatus{Namespace: "DAV:"}
	ms.Responses = append(ms.Responses, h.entry(r, path.Base(p), p, target.Object, target.Collection()))

	if target.Collection() && r.Header.Get("Depth") != "0" {
		for _, e := range dav.List(target.Object) {
			ms.Responses = append(ms.Responses, h.entry(r, e.Name, path.Join(p, e.Name), e.Object, e.Collection))
		}
	}

	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = io.WriteString(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(ms); err != nil {
		return
	}
}
