package models

import "encoding/json"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details json.RawMessage   `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
