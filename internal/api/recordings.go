package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type startRecordingRequest struct {
	RoomID string `json:"roomId"`
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, "invalid recording body: "+err.Error())
		return
	}
	if req.RoomID == "" {
		writeBadRequest(w, r, "roomId is required")
		return
	}
	info, err := s.svc.StartRecording(r.Context(), req.RoomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.StopRecording(r.Context(), chi.URLParam(r, "recordingId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, info)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.GetRecording(r.Context(), chi.URLParam(r, "recordingId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := s.svc.ListRecordings(r.Context(), r.URL.Query().Get("roomId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordings)
}

func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.DeleteRecording(r.Context(), chi.URLParam(r, "recordingId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDeleteRecordings(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, raw := range r.URL.Query()["recordingIds"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		writeBadRequest(w, r, "recordingIds is required")
		return
	}
	res, err := s.svc.BulkDeleteRecordings(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
