package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/flowmesh/dexterity/internal/api/validation"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/site"
)

// maxBodySize bounds JSON request bodies
const maxBodySize = 4 << 20

// TypeHandlers provides HTTP handlers for type descriptors
type TypeHandlers struct {
	site *site.Site
}

// NewTypeHandlers creates new type handlers
func NewTypeHandlers(s *site.Site) *TypeHandlers {
	return &TypeHandlers{site: s}
}

// TypeResponse describes one type
type TypeResponse struct {
	fti.Properties
	SchemaName string `json:"schema_name"`
	Dynamic    bool   `json:"dynamic"`
}

// ListTypesResponse lists the types of the site
type ListTypesResponse struct {
	Types []TypeResponse `json:"types"`
}

// RenameTypeRequest is the body of a rename
type RenameTypeRequest struct {
	ID string `json:"id"`
}

// FieldResponse describes one schema field
type FieldResponse struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Title      string   `json:"title,omitempty"`
	Required   bool     `json:"required,omitempty"`
	Primary    bool     `json:"primary,omitempty"`
	MimeType   string   `json:"mime_type,omitempty"`
	Values     []string `json:"values,omitempty"`
	Permission string   `json:"read_permission,omitempty"`
}

// SchemaResponse describes one schema of a model
type SchemaResponse struct {
	Name   string          `json:"name"`
	Fields []FieldResponse `json:"fields"`
}

// ModelResponse describes the model of a type
type ModelResponse struct {
	Type      string                    `json:"type"`
	Schema    SchemaResponse            `json:"schema"`
	Schemata  map[string]SchemaResponse `json:"schemata,omitempty"`
	Behaviors []SchemaResponse          `json:"behaviors,omitempty"`
}

func typeResponse(d *fti.Descriptor) TypeResponse {
	return TypeResponse{
		Properties: d.Properties(),
		SchemaName: d.SchemaName(),
		Dynamic:    d.HasDynamicSchema(),
	}
}

func schemaResponse(name string, s *schema.Schema) SchemaResponse {
	out := SchemaResponse{Name: name, Fields: []FieldResponse{}}
	for _, f := range s.Fields() {
		out.Fields = append(out.Fields, FieldResponse{
			Name:       f.Name,
			Type:       string(f.Type),
			Title:      f.Title,
			Required:   f.Required,
			Primary:    f.Primary,
			MimeType:   f.MimeType,
			Values:     f.Values,
			Permission: f.ReadPermission,
		})
	}
	return out
}

// List handles GET /api/v1/types
func (h *TypeHandlers) List(w http.ResponseWriter, r *http.Request) {
	resp := ListTypesResponse{Types: []TypeResponse{}}
	for _, d := range h.site.Tool().List() {
		resp.Types = append(resp.Types, typeResponse(d))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/types
func (h *TypeHandlers) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		WriteError(w, validation.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	if err := validation.ValidateTypeRequest(body); err != nil {
		WriteError(w, err)
		return
	}

	var props fti.Properties
	if err := json.Unmarshal(body, &props); err != nil {
		WriteError(w, validation.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	d, err := h.site.AddType(r.Context(), props)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, typeResponse(d))
}

// Get handles GET /api/v1/types/{id}
func (h *TypeHandlers) Get(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := h.site.Tool().Get(id)
	if !ok {
		WriteError(w, fti.NotFoundError{TypeID: id})
		return
	}
	WriteJSON(w, http.StatusOK, typeResponse(d))
}

// Update handles PATCH /api/v1/types/{id} with a property map
func (h *TypeHandlers) Update(w http.ResponseWriter, r *http.Request, id string) {
	var values map[string]any
	if err := decodeJSON(r, &values); err != nil {
		WriteError(w, err)
		return
	}
	d, err := h.site.UpdateType(r.Context(), id, values)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, typeResponse(d))
}

// Delete handles DELETE /api/v1/types/{id}
func (h *TypeHandlers) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.site.RemoveType(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles POST /api/v1/types/{id}/rename
func (h *TypeHandlers) Rename(w http.ResponseWriter, r *http.Request, id string) {
	var req RenameTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := validation.ValidateID("id", req.ID); err != nil {
		WriteError(w, err)
		return
	}
	d, err := h.site.RenameType(r.Context(), id, req.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, typeResponse(d))
}

// Model handles GET /api/v1/types/{id}/model: the compiled model with
// the behavior schemata of the type
func (h *TypeHandlers) Model(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := h.site.Tool().Get(id)
	if !ok {
		WriteError(w, fti.NotFoundError{TypeID: id})
		return
	}
	model, err := d.LookupModel()
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := ModelResponse{Type: id}
	for _, name := range model.Names() {
		if name == "" {
			resp.Schema = schemaResponse(d.SchemaName(), model.Schema())
			continue
		}
		if resp.Schemata == nil {
			resp.Schemata = make(map[string]SchemaResponse)
		}
		resp.Schemata[name] = schemaResponse(name, model.Schemata[name])
	}
	for _, s := range d.LookupBehaviorSchemata() {
		resp.Behaviors = append(resp.Behaviors, schemaResponse(s.Name(), s))
	}
	WriteJSON(w, http.StatusOK, resp)
}
