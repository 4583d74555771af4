package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meetd/internal/log"
)

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recordings/x", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusNotFound, "RECORDING_NOT_FOUND", "recording 'x' not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	var got Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Details{
		Type:      "recordings/recording_not_found",
		Title:     "Not Found",
		Status:    http.StatusNotFound,
		Code:      "RECORDING_NOT_FOUND",
		Detail:    "recording 'x' not found",
		Instance:  "/api/v1/recordings/x",
		RequestID: "req-1",
	}, got)
}
