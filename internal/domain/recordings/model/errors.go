// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"errors"
	"fmt"
)

// Code classifies coordinator failures so callers can branch on kind.
type Code string

const (
	CodeRoomNotFound                     Code = "ROOM_NOT_FOUND"
	CodeRoomHasNoParticipants            Code = "ROOM_HAS_NO_PARTICIPANTS"
	CodeRecordingAlreadyStarted          Code = "RECORDING_ALREADY_STARTED"
	CodeRecordingNotFound                Code = "RECORDING_NOT_FOUND"
	CodeRecordingAlreadyStopped          Code = "RECORDING_ALREADY_STOPPED"
	CodeRecordingCannotStopWhileStarting Code = "RECORDING_CANNOT_BE_STOPPED_WHILE_STARTING"
	CodeRecordingNotStopped              Code = "RECORDING_NOT_STOPPED"
	CodeRecordingStartTimeout            Code = "RECORDING_START_TIMEOUT"
	CodeInvalidRecordingID               Code = "INVALID_RECORDING_ID"
	CodeInvalidRoomID                    Code = "INVALID_ROOM_ID"
	CodeInternal                         Code = "INTERNAL_ERROR"
)

// Error is a typed coordinator error. Two errors match under errors.Is when their
// codes are equal, so the package level sentinels can be used as kinds.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrRoomNotFound                     = &Error{Code: CodeRoomNotFound}
	ErrRoomHasNoParticipants            = &Error{Code: CodeRoomHasNoParticipants}
	ErrRecordingAlreadyStarted          = &Error{Code: CodeRecordingAlreadyStarted}
	ErrRecordingNotFound                = &Error{Code: CodeRecordingNotFound}
	ErrRecordingAlreadyStopped          = &Error{Code: CodeRecordingAlreadyStopped}
	ErrRecordingCannotStopWhileStarting = &Error{Code: CodeRecordingCannotStopWhileStarting}
	ErrRecordingNotStopped              = &Error{Code: CodeRecordingNotStopped}
	ErrRecordingStartTimeout            = &Error{Code: CodeRecordingStartTimeout}
	ErrInvalidRecordingID               = &Error{Code: CodeInvalidRecordingID}
	ErrInvalidRoomID                    = &Error{Code: CodeInvalidRoomID}
	ErrInternal                         = &Error{Code: CodeInternal}
)

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func RoomNotFound(roomID string) *Error {
	return &Error{Code: CodeRoomNotFound, Message: fmt.Sprintf("room '%s' does not exist", roomID)}
}

func RoomHasNoParticipants(roomID string) *Error {
	return &Error{Code: CodeRoomHasNoParticipants, Message: fmt.Sprintf("room '%s' has no participants", roomID)}
}

func RecordingAlreadyStarted(roomID string) *Error {
	return &Error{Code: CodeRecordingAlreadyStarted, Message: fmt.Sprintf("room '%s' is already being recorded", roomID)}
}

func RecordingNotFound(recordingID string) *Error {
	return &Error{Code: CodeRecordingNotFound, Message: fmt.Sprintf("recording '%s' not found", recordingID)}
}

func RecordingAlreadyStopped(recordingID string) *Error {
	return &Error{Code: CodeRecordingAlreadyStopped, Message: fmt.Sprintf("recording '%s' is already stopped", recordingID)}
}

func RecordingCannotBeStoppedWhileStarting(recordingID string) *Error {
	return &Error{Code: CodeRecordingCannotStopWhileStarting, Message: fmt.Sprintf("recording '%s' cannot be stopped while starting", recordingID)}
}

func RecordingNotStopped(recordingID string) *Error {
	return &Error{Code: CodeRecordingNotStopped, Message: fmt.Sprintf("recording '%s' is not stopped yet", recordingID)}
}

func RecordingStartTimeout(roomID string) *Error {
	return &Error{Code: CodeRecordingStartTimeout, Message: fmt.Sprintf("recording in room '%s' timed out while starting", roomID)}
}

func InvalidRecordingID(id, reason string) *Error {
	return &Error{Code: CodeInvalidRecordingID, Message: fmt.Sprintf("invalid recording id '%s': %s", id, reason)}
}

func InvalidRoomID(id string) *Error {
	return &Error{Code: CodeInvalidRoomID, Message: fmt.Sprintf("invalid room id '%s'", id)}
}

// Internal wraps an unexpected lower-layer failure.
func Internal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf("internal error: %s: %v", op, err), Err: err}
}
