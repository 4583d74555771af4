package ports

import (
	"context"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

// BlobStore is the object store contract.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// DeleteMany removes keys in one batch and reports per-key failures.
	DeleteMany(ctx context.Context, keys []string) (map[string]error, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// MetadataStore persists one document per recording plus room archives.
type MetadataStore interface {
	Get(ctx context.Context, id model.RecordingID) (*model.RecordingInfo, error) // ErrNotFound
	GetByKey(ctx context.Context, key string) (*model.RecordingInfo, error)      // ErrNotFound
	Put(ctx context.Context, info *model.RecordingInfo) error
	Delete(ctx context.Context, key string) error
	ListUnderPrefix(ctx context.Context, prefix string) ([]string, error)

	// Key layout, used for batch deletes and emptiness checks.
	MetadataKey(id model.RecordingID) string
	MediaKey(filename string) string
	// RoomMetadataPrefix returns the metadata root when roomID is empty.
	RoomMetadataPrefix(roomID string) string
	RoomArchiveKey(roomID string) string

	PutRoomArchive(ctx context.Context, archive model.RoomArchive) error
	GetRoomArchive(ctx context.Context, roomID string) (*model.RoomArchive, error) // ErrNotFound
}

// RoomStore persists rooms.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*model.Room, error) // ErrNotFound
	PutRoom(ctx context.Context, room *model.Room) error
	DeleteRoom(ctx context.Context, roomID string) error
	ListRooms(ctx context.Context) ([]model.Room, error)
}
