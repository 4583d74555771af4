package coordinator

import (
	"context"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
)

// HandleEgressUpdate applies a status report from the media server. It stores the
// merged document, announces it on the status topic, wakes a pending start when the
// recording became active, and releases the room's lock once nothing is in progress.
func (c *Coordinator) HandleEgressUpdate(ctx context.Context, e ports.EgressInfo) (info *model.RecordingInfo, err error) {
	defer func() { observe("egress_update", err) }()

	id, err := recordingIDForEgress(e)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With().
		Str(log.FieldRecordingID, id.String()).
		Str(log.FieldEgressID, e.EgressID).
		Logger()

	merged, refused := c.mergeEgress(ctx, id, e)
	if refused {
		logger.Info().
			Str(log.FieldOldState, string(merged.Status)).
			Str(log.FieldNewState, string(e.Status)).
			Msg("keeping terminal status, refusing transition")
	}
	if err := c.persist(ctx, &merged); err != nil {
		return nil, model.Internal("store recording", err)
	}
	if merged.Status == model.StatusActive {
		c.publish(ctx, model.TopicRecordingActive(id.RoomID), merged)
	}

	if e.Status.IsTerminal() {
		c.releaseIfIdle(ctx, id.RoomID, e.EgressID)
	}
	return &merged, nil
}

// releaseIfIdle releases the room's lock when no egress other than finished is
// still in progress.
func (c *Coordinator) releaseIfIdle(ctx context.Context, roomID, finished string) {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()

	active, err := c.gateway.ListEgress(ctx, ports.EgressFilter{RoomID: roomID, ActiveOnly: true})
	if err != nil {
		c.logger.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list egress after recording ended")
		return
	}
	for _, a := range active {
		if a.EgressID != finished {
			return
		}
	}
	c.releaseLock(ctx, roomID, "recording ended")
}
