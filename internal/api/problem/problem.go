// Package problem writes RFC 7807 problem responses for the loyalty API.
package problem

import (
	"encoding/json"
	"net/http"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.loyalty.example.com/"
)

// InvalidParam names a request field that failed validation.
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Details represents RFC 7807 Problem Details. InvalidParams is the
// extension member used for field-level validation failures.
type Details struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail"`
	Instance      string         `json:"instance"`
	RequestID     string         `json:"request_id"`
	InvalidParams []InvalidParam `json:"invalid_params,omitempty"`
}

// Type expands a slug such as "voucher/not-usable" into a problem type URI.
func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends an RFC 7807 response.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	WriteInvalid(w, r, status, problemType, title, detail)
}

// WriteInvalid is Write with field-level validation failures attached.
func WriteInvalid(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string, params ...InvalidParam) {
	d := Details{
		Type:          problemType,
		Title:         title,
		Status:        status,
		Detail:        detail,
		InvalidParams: params,
	}
	if d.Title == "" {
		d.Title = http.StatusText(status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get("X-Trace-ID")
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(d)
}
