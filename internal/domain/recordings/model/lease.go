package model

import "strings"

const (
	// NamespaceRecordingActive is the lock namespace gating recording starts.
	NamespaceRecordingActive = "recordingActiveLock"

	taskStartTimeoutPrefix = "recording-start-timeout:"
)

// ActiveLockPrefix is the prefix shared by all active-recording locks.
func ActiveLockPrefix() string {
	return NamespaceRecordingActive + ":"
}

// ActiveLockKey returns the lock name for roomID, e.g. "recordingActiveLock:room-1".
func ActiveLockKey(roomID string) string {
	return ActiveLockPrefix() + roomID
}

// RoomIDFromActiveLockKey extracts the room id from an active-recording lock name.
func RoomIDFromActiveLockKey(name string) (string, bool) {
	roomID, ok := strings.CutPrefix(name, ActiveLockPrefix())
	if !ok || roomID == "" {
		return "", false
	}
	return roomID, true
}

// StartTimeoutTaskName is the scheduler task name of a pending start's timeout.
func StartTimeoutTaskName(roomID string) string {
	return taskStartTimeoutPrefix + roomID
}
