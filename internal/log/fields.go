// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldRoomID        = "room_id"
	FieldRecordingID   = "recording_id"
	FieldEgressID      = "egress_id"

	// Coordination fields
	FieldLock      = "lock"
	FieldTask      = "task"
	FieldTopic     = "topic"
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldStatus   = "status"

	// Storage fields
	FieldKey    = "key"
	FieldPrefix = "prefix"
)
