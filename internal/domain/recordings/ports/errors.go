package ports

import "errors"

var (
	// ErrNotFound is returned by stores when a key or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomNotFound is returned by the gateway when the media room does not exist.
	ErrRoomNotFound = errors.New("media room not found")
)
