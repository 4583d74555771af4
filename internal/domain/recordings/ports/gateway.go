package ports

import (
	"context"
	"time"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

// EgressInfo is the gateway's view of one composition session.
type EgressInfo struct {
	EgressID  string
	RoomID    string
	Status    model.RecordingStatus
	Layout    string
	Encoding  string
	FilePath  string // object path requested at start
	Filename  string // object path of the produced file, empty until written
	StartedAt time.Time
	EndedAt   time.Time
	UpdatedAt time.Time
	Duration  time.Duration
	Size      int64
	Error     string
	ErrorCode int32
	Details   string
}

// LiveRoom is the media server's view of a room.
type LiveRoom struct {
	RoomID          string
	NumParticipants int
	NumPublishers   int
	ActiveRecording bool
}

// StartOptions configures a composed recording.
type StartOptions struct {
	Layout   string
	Encoding string
}

// EgressFilter narrows ListEgress. Empty fields do not filter.
type EgressFilter struct {
	RoomID     string
	EgressID   string
	ActiveOnly bool
}

// Gateway is the egress/media gateway.
type Gateway interface {
	StartRoomComposite(ctx context.Context, roomID, filePath string, opts StartOptions) (*EgressInfo, error)
	StopEgress(ctx context.Context, egressID string) (*EgressInfo, error)
	ListEgress(ctx context.Context, filter EgressFilter) ([]EgressInfo, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	// GetRoom returns ErrRoomNotFound when the media room does not exist.
	GetRoom(ctx context.Context, roomID string) (*LiveRoom, error)
}
