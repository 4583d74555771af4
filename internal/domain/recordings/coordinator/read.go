package coordinator

import (
	"context"
	"errors"
	"sort"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
)

// GetRecording returns the stored document for recordingID.
func (c *Coordinator) GetRecording(ctx context.Context, recordingID string) (*model.RecordingInfo, error) {
	id, err := model.ParseRecordingID(recordingID)
	if err != nil {
		return nil, err
	}
	info, err := c.meta.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, model.RecordingNotFound(recordingID)
		}
		return nil, model.Internal("get recording", err)
	}
	return info, nil
}

// ListRecordings returns the recordings of roomID, or of every room when roomID is
// empty, newest first. Documents that vanish or fail to decode are skipped.
func (c *Coordinator) ListRecordings(ctx context.Context, roomID string) ([]model.RecordingInfo, error) {
	keys, err := c.meta.ListUnderPrefix(ctx, c.meta.RoomMetadataPrefix(roomID))
	if err != nil {
		return nil, model.Internal("list recordings", err)
	}

	out := make([]model.RecordingInfo, 0, len(keys))
	for _, key := range keys {
		info, err := c.meta.GetByKey(ctx, key)
		if err != nil {
			if !errors.Is(err, ports.ErrNotFound) {
				c.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("skipping unreadable recording metadata")
			}
			continue
		}
		out = append(out, *info)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate > out[j].StartDate })
	return out, nil
}
