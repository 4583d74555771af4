package model

import "time"

// RecordingInfo is the persisted document for one recording.
type RecordingInfo struct {
	RecordingID string          `json:"recordingId"`
	RoomID      string          `json:"roomId"`
	RoomName    string          `json:"roomName"`
	Status      RecordingStatus `json:"status"`
	Layout      string          `json:"layout,omitempty"`
	Encoding    string          `json:"encoding,omitempty"`
	Filename    string          `json:"filename,omitempty"`
	StartDate   int64           `json:"startDate,omitempty"` // epoch ms
	EndDate     int64           `json:"endDate,omitempty"`   // epoch ms
	Duration    float64         `json:"duration,omitempty"`  // seconds
	Size        int64           `json:"size,omitempty"`      // bytes
	Error       string          `json:"error,omitempty"`
	ErrorCode   int32           `json:"errorCode,omitempty"`
	Details     string          `json:"details,omitempty"`
}

// ID parses the document's recording identifier.
func (r *RecordingInfo) ID() (RecordingID, error) {
	return ParseRecordingID(r.RecordingID)
}

// Room is a meeting room managed by the control plane.
type Room struct {
	RoomID           string          `json:"roomId"`
	RoomName         string          `json:"roomName"`
	CreatedAt        int64           `json:"createdAt"` // epoch ms
	AutoDeletionDate int64           `json:"autoDeletionDate,omitempty"`
	Preferences      RoomPreferences `json:"preferences"`
}

// RoomPreferences holds per-room feature switches.
type RoomPreferences struct {
	Recording RecordingPreferences `json:"recording"`
}

// RecordingPreferences configures recordings started in a room.
type RecordingPreferences struct {
	Enabled bool   `json:"enabled"`
	Layout  string `json:"layout,omitempty"`
}

// RoomArchive is the snapshot of a room kept next to its recordings so they stay
// attributable after the room itself is deleted.
type RoomArchive struct {
	RoomID    string `json:"roomId"`
	RoomName  string `json:"roomName"`
	CreatedAt int64  `json:"createdAt"`
}

// ArchiveOf returns the archival snapshot of room.
func ArchiveOf(room *Room) RoomArchive {
	return RoomArchive{RoomID: room.RoomID, RoomName: room.RoomName, CreatedAt: room.CreatedAt}
}

// UnixMilli converts t to epoch milliseconds, mapping the zero time to 0.
func UnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
