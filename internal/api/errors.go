package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/meetd/internal/api/problem"
	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/log"
)

const codeInvalidRequest = "INVALID_REQUEST"

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps coordinator error codes onto HTTP status codes.
func statusFor(code model.Code) int {
	switch code {
	case model.CodeRoomNotFound, model.CodeRecordingNotFound:
		return http.StatusNotFound
	case model.CodeRoomHasNoParticipants,
		model.CodeRecordingAlreadyStarted,
		model.CodeRecordingAlreadyStopped,
		model.CodeRecordingCannotStopWhileStarting,
		model.CodeRecordingNotStopped:
		return http.StatusConflict
	case model.CodeInvalidRecordingID, model.CodeInvalidRoomID:
		return http.StatusBadRequest
	case model.CodeRecordingStartTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a problem document. Internal errors are logged and
// their detail is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := model.CodeOf(err)
	status := statusFor(code)
	detail := err.Error()

	if status == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("request failed")
		detail = "internal error"
	}
	problem.Write(w, r, status, string(code), detail)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	problem.Write(w, r, http.StatusBadRequest, codeInvalidRequest, detail)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
