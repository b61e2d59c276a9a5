package handlers

import (
	"net/http"
	"time"

	"github.com/flowmesh/dexterity/internal/api/validation"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/site"
)

// PermissionView guards reading content
const PermissionView = "zope2.View"

// ContentHandlers provides HTTP handlers for content objects
type ContentHandlers struct {
	site *site.Site
}

// NewContentHandlers creates new content handlers
func NewContentHandlers(s *site.Site) *ContentHandlers {
	return &ContentHandlers{site: s}
}

// ContentResponse describes one content object
type ContentResponse struct {
	UID           string         `json:"uid"`
	ID            string         `json:"id"`
	Path          string         `json:"path"`
	PortalType    string         `json:"portal_type"`
	Kind          content.Kind   `json:"kind"`
	Title         string         `json:"title,omitempty"`
	WorkflowState string         `json:"workflow_state,omitempty"`
	Created       time.Time      `json:"created"`
	Modified      time.Time      `json:"modified"`
	Provides      []string       `json:"provides"`
	Fields        map[string]any `json:"fields"`
	Children      []string       `json:"children,omitempty"`
}

// CreateContentRequest is the body of a content creation
type CreateContentRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields,omitempty"`
}

// UpdateContentRequest is the body of a content update. A new id renames
// the object after the fields are applied.
type UpdateContentRequest struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (h *ContentHandlers) response(r *http.Request, obj *content.Content) ContentResponse {
	return ContentResponse{
		UID:           obj.UID(),
		ID:            obj.ID(),
		Path:          obj.PhysicalPath(),
		PortalType:    obj.PortalType(),
		Kind:          obj.Kind(),
		Title:         obj.Title(),
		WorkflowState: obj.WorkflowState(),
		Created:       obj.Created(),
		Modified:      obj.ModificationTime(),
		Provides:      h.site.Resolver().ProvidedBy(obj).Names(),
		Fields:        h.site.Readable(r.Context(), obj),
		Children:      obj.ChildIDs(),
	}
}

func (h *ContentHandlers) traverse(path string) (*content.Content, error) {
	path, err := validation.ParseContentPath(path)
	if err != nil {
		return nil, validation.ValidationError{Field: "path", Reason: err.Error()}
	}
	return h.site.Traverse(path)
}

// Get handles GET /api/v1/content/{path}
func (h *ContentHandlers) Get(w http.ResponseWriter, r *http.Request, path string) {
	obj, err := h.traverse(path)
	if err != nil {
		WriteError(w, err)
		return
	}
	env := h.site.Environment()
	if !security.Check(r.Context(), env.Checker, env.Permissions, PermissionView, obj) {
		WriteError(w, security.ForbiddenError{Permission: PermissionView, Target: obj.PhysicalPath()})
		return
	}
	WriteJSON(w, http.StatusOK, h.response(r, obj))
}

// Create handles POST /api/v1/content/{container}
func (h *ContentHandlers) Create(w http.ResponseWriter, r *http.Request, path string) {
	var req CreateContentRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := validation.ValidateNonEmpty("type", req.Type); err != nil {
		WriteError(w, err)
		return
	}
	if err := validation.ValidateID("id", req.ID); err != nil {
		WriteError(w, err)
		return
	}
	container, err := validation.ParseContentPath(path)
	if err != nil {
		WriteError(w, validation.ValidationError{Field: "path", Reason: err.Error()})
		return
	}

	obj, err := h.site.Construct(r.Context(), container, req.Type, req.ID, req.Fields)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, h.response(r, obj))
}

// Update handles PATCH /api/v1/content/{path}
func (h *ContentHandlers) Update(w http.ResponseWriter, r *http.Request, path string) {
	var req UpdateContentRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	obj, err := h.traverse(path)
	if err != nil {
		WriteError(w, err)
		return
	}

	if len(req.Fields) > 0 {
		if _, err := h.site.Update(r.Context(), obj, req.Fields); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.ID != "" && req.ID != obj.ID() {
		if err := validation.ValidateID("id", req.ID); err != nil {
			WriteError(w, err)
			return
		}
		if err := h.site.Rename(r.Context(), obj, req.ID); err != nil {
			WriteError(w, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, h.response(r, obj))
}

// Delete handles DELETE /api/v1/content/{path}
func (h *ContentHandlers) Delete(w http.ResponseWriter, r *http.Request, path string) {
	obj, err := h.traverse(path)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.site.Delete(r.Context(), obj); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
