// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ManuGH/meetd/internal/log"
)

const ContentType = "application/problem+json"

// Details is the response body.
//
//   - type: machine identifier derived from the code (e.g. "recordings/recording_not_found").
//   - code: stable short code clients branch on (e.g. "RECORDING_NOT_FOUND").
//   - detail: human-readable explanation of this occurrence.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Write writes a problem document with the given status and code.
func Write(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	p := Details{
		Type:   "recordings/" + strings.ToLower(code),
		Title:  http.StatusText(status),
		Status: status,
		Code:   code,
		Detail: detail,
	}
	if r != nil {
		p.Instance = r.URL.EscapedPath()
		p.RequestID = log.RequestIDFromContext(r.Context())
	}
	if p.RequestID == "" {
		p.RequestID = w.Header().Get(log.HeaderRequestID)
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.L().Error().Err(err).Str("code", code).Int("status", status).Msg("failed to encode problem response")
	}
}
