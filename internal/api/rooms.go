package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

type createRoomRequest struct {
	RoomID      string                `json:"roomId"`
	RoomName    string                `json:"roomName"`
	Preferences model.RoomPreferences `json:"preferences"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, "invalid room body: "+err.Error())
		return
	}
	room, err := s.svc.CreateRoom(r.Context(), model.Room{
		RoomID:      req.RoomID,
		RoomName:    req.RoomName,
		Preferences: req.Preferences,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.svc.GetRoom(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteRoom(r.Context(), chi.URLParam(r, "roomId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
