// Package problem renders classified errors into the client-facing wire
// format, an RFC 7807 style problem+json body.
package problem

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/faultline/faultline/internal/taxonomy"
)

// ContentType is the media type for problem responses.
const ContentType = "application/problem+json"

// typeBase is the documentation URI prefix for registered error codes.
const typeBase = "https://errors.fixzit.app/"

// FieldError is one field-level detail inside a problem body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Details is the problem+json body returned to the reporting client.
type Details struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail"`
	Instance string       `json:"instance,omitempty"`
	Code     string       `json:"code"`
	Errors   []FieldError `json:"errors,omitempty"`
	TraceID  string       `json:"traceId"`
}

// Render builds the problem body for an occurrence. It is total: it returns
// a well-formed body even when classification fell back to UNKNOWN, and the
// detail is expected to be the redacted user-safe message, never a stack.
func Render(cls taxonomy.Classification, code, detail, instance, traceID string, fieldErrors []FieldError) Details {
	d := Details{
		Type:     "about:blank",
		Title:    cls.Title,
		Status:   cls.HTTPStatus,
		Detail:   detail,
		Instance: instance,
		Code:     code,
		Errors:   fieldErrors,
		TraceID:  traceID,
	}

	if cls.Known && code != "" {
		d.Type = typeBase + strings.ToLower(code)
	}
	if d.Status <= 0 {
		d.Status = http.StatusInternalServerError
	}
	if d.Title == "" {
		d.Title = http.StatusText(d.Status)
	}
	if d.Title == "" {
		d.Title = "Internal error"
	}
	return d
}

// Write encodes a problem body to the response with the problem media type.
func Write(w http.ResponseWriter, d Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(d.Status)
	if err := json.NewEncoder(w).Encode(d); err != nil {
		log.Printf("Failed to encode problem response: %v", err)
	}
}
