// Package problem renders RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"
)

const (
	TypeValidation  = "https://gateflow.app/problems/validation-error"
	TypeNotFound    = "https://gateflow.app/problems/not-found"
	TypeUnavailable = "https://gateflow.app/problems/store-unavailable"
	TypeInternal    = "https://gateflow.app/problems/internal-error"
)

// Details is the wire shape of an error response.
type Details struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Write serializes the details with the problem+json media type.
func Write(w http.ResponseWriter, details Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(details.Status)
	_ = json.NewEncoder(w).Encode(details)
}
