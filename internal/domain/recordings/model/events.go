package model

// EventType tags a recording status notification.
type EventType string

const (
	EventRecordingStarted EventType = "recording_started"
	EventRecordingUpdated EventType = "recording_updated"
	EventRecordingEnded   EventType = "recording_ended"
)

const (
	// TopicRecordingStatus carries every status change.
	TopicRecordingStatus = "recording.status"

	topicRecordingActivePrefix = "recording.active."
)

// TopicRecordingActive is the per-room topic a pending start listens on.
func TopicRecordingActive(roomID string) string {
	return topicRecordingActivePrefix + roomID
}

// RecordingEvent is the structured payload published on the event bus.
type RecordingEvent struct {
	Type        EventType       `json:"type"`
	RoomID      string          `json:"roomId"`
	RecordingID string          `json:"recordingId"`
	Status      RecordingStatus `json:"status"`
	Recording   RecordingInfo   `json:"recording"`
}

// EventTypeFor maps a status to the notification kind clients see.
func EventTypeFor(s RecordingStatus) EventType {
	switch {
	case s == StatusStarting:
		return EventRecordingStarted
	case s.IsTerminal():
		return EventRecordingEnded
	default:
		return EventRecordingUpdated
	}
}

// NewRecordingEvent builds the event for info's current status.
func NewRecordingEvent(info RecordingInfo) RecordingEvent {
	return RecordingEvent{
		Type:        EventTypeFor(info.Status),
		RoomID:      info.RoomID,
		RecordingID: info.RecordingID,
		Status:      info.Status,
		Recording:   info,
	}
}
