// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// IDSeparator joins the three parts of a recording identifier.
	IDSeparator = "--"
	// EgressIDPrefix is the handle prefix the egress gateway assigns to sessions.
	EgressIDPrefix = "EG_"

	uidLength = 12
)

var roomIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsSafeRoomID returns true if the room id is safe for object keys, lock names and URLs.
// Room ids may not contain the identifier separator.
func IsSafeRoomID(id string) bool {
	return roomIDRe.MatchString(id) && !strings.Contains(id, IDSeparator)
}

// RecordingID is the composite "{roomId}--{egressId}--{uid}" identifier.
type RecordingID struct {
	RoomID   string
	EgressID string
	UID      string
}

// NewRecordingID composes an identifier from its parts without validating them.
func NewRecordingID(roomID, egressID, uid string) RecordingID {
	return RecordingID{RoomID: roomID, EgressID: egressID, UID: uid}
}

// ParseRecordingID decomposes s. Anything other than exactly three non-empty parts
// of [a-zA-Z0-9_-] with an egress handle in the middle is rejected.
func ParseRecordingID(s string) (RecordingID, error) {
	parts := strings.Split(s, IDSeparator)
	if len(parts) != 3 {
		return RecordingID{}, InvalidRecordingID(s, fmt.Sprintf("expected 3 parts, got %d", len(parts)))
	}
	for i, p := range parts {
		if p == "" {
			return RecordingID{}, InvalidRecordingID(s, fmt.Sprintf("part %d is empty", i+1))
		}
	}
	if !strings.HasPrefix(parts[1], EgressIDPrefix) || len(parts[1]) == len(EgressIDPrefix) {
		return RecordingID{}, InvalidRecordingID(s, "egress id must start with "+EgressIDPrefix)
	}
	// Parts end up in object keys and lock names; path separators and dots are never valid.
	for i, p := range parts {
		if !roomIDRe.MatchString(p) {
			return RecordingID{}, InvalidRecordingID(s, fmt.Sprintf("part %d contains invalid characters", i+1))
		}
	}
	return RecordingID{RoomID: parts[0], EgressID: parts[1], UID: parts[2]}, nil
}

// String returns the wire form of the identifier.
func (id RecordingID) String() string {
	return id.RoomID + IDSeparator + id.EgressID + IDSeparator + id.UID
}

// IsZero reports whether no part of the identifier is set.
func (id RecordingID) IsZero() bool {
	return id.RoomID == "" && id.EgressID == "" && id.UID == ""
}

// NewUID returns a fresh random uniqueness token.
func NewUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:uidLength]
}

// RecordingFilePath returns the object path the egress writes the composed file to.
// The uid is embedded in the file name so it can be recovered from any egress session.
func RecordingFilePath(roomID, uid string) string {
	return path.Join(roomID, roomID+IDSeparator+uid+".mp4")
}

// UIDFromFilePath extracts the uid from a path produced by RecordingFilePath.
func UIDFromFilePath(p string) (string, bool) {
	name := path.Base(p)
	name = strings.TrimSuffix(name, path.Ext(name))
	idx := strings.LastIndex(name, IDSeparator)
	if idx < 0 || idx+len(IDSeparator) >= len(name) {
		return "", false
	}
	return name[idx+len(IDSeparator):], true
}
