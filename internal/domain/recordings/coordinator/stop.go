package coordinator

import (
	"context"
	"errors"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
)

// StopRecording stops an active recording. Recordings still starting cannot be
// stopped; only the start timeout may abort them.
func (c *Coordinator) StopRecording(ctx context.Context, recordingID string) (info *model.RecordingInfo, err error) {
	defer func() { observe("stop", err) }()
	return c.stop(ctx, recordingID)
}

func (c *Coordinator) stop(ctx context.Context, recordingID string) (*model.RecordingInfo, error) {
	id, err := model.ParseRecordingID(recordingID)
	if err != nil {
		return nil, err
	}

	sessions, err := c.gateway.ListEgress(ctx, ports.EgressFilter{RoomID: id.RoomID, EgressID: id.EgressID})
	if err != nil {
		return nil, model.Internal("list egress", err)
	}
	var current *ports.EgressInfo
	for i := range sessions {
		if sessions[i].EgressID == id.EgressID {
			current = &sessions[i]
			break
		}
	}
	if current == nil {
		return nil, model.RecordingNotFound(recordingID)
	}

	switch current.Status {
	case model.StatusActive:
	case model.StatusStarting:
		return nil, model.RecordingCannotBeStoppedWhileStarting(recordingID)
	default:
		return nil, model.RecordingAlreadyStopped(recordingID)
	}

	stopped, err := c.gateway.StopEgress(ctx, id.EgressID)
	if err != nil {
		return nil, model.Internal("stop egress", err)
	}

	info, _ := c.mergeEgress(ctx, id, *stopped)
	if info.Status == model.StatusActive {
		info.Status = model.StatusEnding
	}
	if err := c.persist(ctx, &info); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldRecordingID, recordingID).Msg("failed to store stopped recording")
	}
	c.logger.Info().
		Str(log.FieldRecordingID, recordingID).
		Str(log.FieldStatus, string(info.Status)).
		Msg("recording stopped")
	return &info, nil
}

// mergeEgress overlays the gateway's view of a session on the stored document.
// Fields the gateway leaves empty keep their stored values. refused reports that
// the stored terminal status was kept over the reported one.
func (c *Coordinator) mergeEgress(ctx context.Context, id model.RecordingID, e ports.EgressInfo) (next model.RecordingInfo, refused bool) {
	stored, err := c.meta.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			c.logger.Warn().Err(err).Str(log.FieldRecordingID, id.String()).Msg("failed to read recording metadata")
		}
		return infoFromEgress(id, c.roomName(ctx, id.RoomID), e), false
	}

	next = infoFromEgress(id, stored.RoomName, e)
	if next.Layout == "" {
		next.Layout = stored.Layout
	}
	if next.Encoding == "" {
		next.Encoding = stored.Encoding
	}
	if next.Filename == "" {
		next.Filename = stored.Filename
	}
	if next.StartDate == 0 {
		next.StartDate = stored.StartDate
	}
	if next.EndDate == 0 {
		next.EndDate = stored.EndDate
	}
	if next.Duration == 0 {
		next.Duration = stored.Duration
	}
	if next.Size == 0 {
		next.Size = stored.Size
	}
	if next.Error == "" {
		next.Error, next.ErrorCode, next.Details = stored.Error, stored.ErrorCode, stored.Details
	}
	if stored.Status.IsTerminal() && !model.CanTransition(stored.Status, next.Status) {
		refused = next.Status != stored.Status
		next.Status = stored.Status
	}
	return next, refused
}

func (c *Coordinator) roomName(ctx context.Context, roomID string) string {
	if room, err := c.rooms.GetRoom(ctx, roomID); err == nil {
		return room.RoomName
	}
	if archive, err := c.meta.GetRoomArchive(ctx, roomID); err == nil {
		return archive.RoomName
	}
	return roomID
}
