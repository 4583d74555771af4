// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// RecordingStatus is the lifecycle state of a recording.
type RecordingStatus string

const (
	StatusStarting     RecordingStatus = "STARTING"
	StatusActive       RecordingStatus = "ACTIVE"
	StatusEnding       RecordingStatus = "ENDING"
	StatusComplete     RecordingStatus = "COMPLETE"
	StatusFailed       RecordingStatus = "FAILED"
	StatusAborted      RecordingStatus = "ABORTED"
	StatusLimitReached RecordingStatus = "LIMIT_REACHED"
)

// IsInProgress returns true for STARTING, ACTIVE and ENDING.
func (s RecordingStatus) IsInProgress() bool {
	switch s {
	case StatusStarting, StatusActive, StatusEnding:
		return true
	}
	return false
}

// IsTerminal returns true if the status is a final state.
func (s RecordingStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusAborted, StatusLimitReached:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known statuses.
func (s RecordingStatus) IsValid() bool {
	return s.IsInProgress() || s.IsTerminal()
}

var transitions = map[RecordingStatus][]RecordingStatus{
	StatusStarting: {StatusActive, StatusEnding, StatusFailed, StatusAborted, StatusLimitReached},
	StatusActive:   {StatusEnding, StatusFailed, StatusAborted, StatusLimitReached},
	StatusEnding:   {StatusComplete, StatusFailed, StatusAborted, StatusLimitReached},
}

// CanTransition reports whether the state machine allows from -> to.
// Self transitions are allowed for in-progress states so repeated updates are idempotent.
func CanTransition(from, to RecordingStatus) bool {
	if from == to {
		return from.IsInProgress()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
