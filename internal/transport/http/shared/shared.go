// Package shared holds the JSON response and error translation helpers used
// by every HTTP handler.
package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	dErrors "consular/pkg/domain-errors"
)

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// statusByCode maps domain error codes to HTTP statuses. Codes not listed
// surface as 500 with a generic message so internals never leak.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:          http.StatusBadRequest,
	dErrors.CodeInvalidInput:        http.StatusBadRequest,
	dErrors.CodeValidation:          http.StatusUnprocessableEntity,
	dErrors.CodeUnauthorized:        http.StatusUnauthorized,
	dErrors.CodeForbidden:           http.StatusForbidden,
	dErrors.CodeNotFound:            http.StatusNotFound,
	dErrors.CodeConflict:            http.StatusConflict,
	dErrors.CodeOverlap:             http.StatusConflict,
	dErrors.CodeDuplicateForRequest: http.StatusConflict,
	dErrors.CodeInvalidTransition:   http.StatusConflict,
}

// WriteError translates a domain error into its HTTP response.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    string(dErrors.CodeInternal),
			Message: "internal error",
		})
		return
	}
	WriteJSON(w, status, ErrorResponse{
		Code:    string(code),
		Message: dErrors.MessageOf(err),
	})
}

// DecodeJSON decodes a request body into dst, rejecting unknown fields and
// trailing garbage.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// PathID is a small helper for typed ID parsing in handlers: it wraps the
// parse error of a URL parameter with the parameter's name.
func PathID[T any](name, raw string, parse func(string) (T, error)) (T, error) {
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, dErrors.Wrap(err, dErrors.CodeBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return v, nil
}
