// Package spec serves the OpenAPI document describing the loyalty API.
package spec

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var openapi []byte

// OpenAPIHandler serves the embedded OpenAPI document. Swagger UI at
// /swagger/ loads it from /openapi.yaml.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(openapi) == 0 {
			http.Error(w, "openapi spec not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openapi)
	}
}
