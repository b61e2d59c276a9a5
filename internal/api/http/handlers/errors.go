package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flowmesh/dexterity/internal/api/validation"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/dav"
	"github.com/flowmesh/dexterity/internal/filerep"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/rfc822"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
)

// ErrorResponse is the JSON body of failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusOf maps an engine error to an HTTP status code
func StatusOf(err error) int {
	var (
		notFound      content.NotFoundError
		typeNotFound  fti.NotFoundError
		attrNotFound  content.AttributeNotFoundError
		schemaMissing schema.NotFoundError
		exists        content.ExistsError
		typeExists    fti.ExistsError
		forbidden     security.ForbiddenError
		unauthorized  dav.UnauthorizedError
		notAllowed    dav.MethodNotAllowedError
		noFactory     dav.NoFactoryError
		disallowed    fti.DisallowedTypeError
		notContainer  content.NotContainerError
		invalidID     content.InvalidIDError
		fieldErr      content.FieldError
		propErr       fti.InvalidPropertyError
		modelErr      schema.InvalidModelError
		configErr     fti.ConfigurationError
		notImpl       filerep.NotImplementedError
		state         filerep.InvalidStateError
		charsetErr    rfc822.UnknownCharsetError
		valueErr      rfc822.FieldValueError
		validationErr validation.ValidationError
	)

	switch {
	case errors.As(err, &notFound), errors.As(err, &typeNotFound),
		errors.As(err, &attrNotFound), errors.As(err, &schemaMissing):
		return http.StatusNotFound
	case errors.As(err, &exists), errors.As(err, &typeExists):
		return http.StatusConflict
	case errors.As(err, &forbidden), errors.As(err, &disallowed):
		return http.StatusForbidden
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &notAllowed), errors.As(err, &notContainer):
		return http.StatusMethodNotAllowed
	case errors.As(err, &noFactory):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &notImpl):
		return http.StatusNotImplemented
	case errors.As(err, &invalidID), errors.As(err, &fieldErr), errors.As(err, &propErr),
		errors.As(err, &modelErr), errors.As(err, &charsetErr), errors.As(err, &valueErr),
		errors.As(err, &validationErr),
		errors.As(err, &state):
		return http.StatusBadRequest
	case errors.As(err, &configErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a JSON error response
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error: " + msg
	}
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteJSON writes v as a JSON response with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Failed to encode response, but we've already written the status code
		return
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return validation.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
