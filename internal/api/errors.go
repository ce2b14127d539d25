package api

import (
	"encoding/json"
	"net/http"
)

// Detail messages shared by every handler.
const (
	detailInvalidToken = "Invalid token"
	detailInternal     = "Internal server error"
)

// Validation error types.
const (
	errTypeMissing    = "value_error.missing"
	errTypeJSON       = "value_error.jsondecode"
	errTypeString     = "type_error.str"
	errTypeDict       = "type_error.dict"
	errTypeScalar     = "type_error.scalar"
	errTypeReserved   = "value_error.reserved"
	errTypeEmptyKey   = "value_error.empty"
	errTypeUnknownAct = "value_error.action"
)

// detailResponse is the body of every non-validation error.
type detailResponse struct {
	Detail string `json:"detail"`
}

// FieldError locates one validation failure in the request.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// validationResponse is the 422 body.
type validationResponse struct {
	Detail []FieldError `json:"detail"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeDetail writes {"detail": message}.
func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, detailResponse{Detail: message})
}

// writeUnauthorized writes the single 401 response used for every
// authentication failure.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detailInvalidToken)
}

// writeValidationErrors writes a 422 response listing field errors.
func writeValidationErrors(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: errs})
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeDetail(w, http.StatusNotFound, message)
}

// writeInternalError writes a 500 response that never carries error text.
func writeInternalError(w http.ResponseWriter) {
	writeDetail(w, http.StatusInternalServerError, detailInternal)
}
