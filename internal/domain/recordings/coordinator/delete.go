package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
)

// BulkDeleteFailure reports why one recording was not deleted.
type BulkDeleteFailure struct {
	RecordingID string `json:"recordingId"`
	Error       string `json:"error"`
}

// BulkDeleteResult partitions the requested ids.
type BulkDeleteResult struct {
	Deleted    []string            `json:"deleted"`
	NotDeleted []BulkDeleteFailure `json:"notDeleted"`
}

// DeleteRecording removes a terminal recording's media and metadata. When it was
// the room's last recording the room archive is removed too.
func (c *Coordinator) DeleteRecording(ctx context.Context, recordingID string) (info *model.RecordingInfo, err error) {
	defer func() { observe("delete", err) }()

	id, info, err := c.deletable(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	if err := c.blobs.Delete(ctx, c.mediaKey(id, info)); err != nil {
		return nil, model.Internal("delete media", err)
	}
	if err := c.meta.Delete(ctx, c.meta.MetadataKey(id)); err != nil {
		return nil, model.Internal("delete metadata", err)
	}

	c.logger.Info().Str(log.FieldRecordingID, recordingID).Msg("recording deleted")
	c.cleanupRoomArchive(ctx, id.RoomID)
	return info, nil
}

// BulkDeleteRecordings validates every id independently and removes all
// deletable objects in one batch. Duplicate ids are handled once.
func (c *Coordinator) BulkDeleteRecordings(ctx context.Context, recordingIDs []string) (BulkDeleteResult, error) {
	res := BulkDeleteResult{Deleted: []string{}, NotDeleted: []BulkDeleteFailure{}}

	type candidate struct {
		recordingID string
		roomID      string
		keys        []string
	}
	var (
		candidates []candidate
		keys       []string
		seen       = make(map[string]struct{}, len(recordingIDs))
	)
	for _, rid := range recordingIDs {
		if _, dup := seen[rid]; dup {
			continue
		}
		seen[rid] = struct{}{}

		id, info, err := c.deletable(ctx, rid)
		if err != nil {
			observe("bulk_delete", err)
			res.NotDeleted = append(res.NotDeleted, BulkDeleteFailure{RecordingID: rid, Error: err.Error()})
			continue
		}
		k := []string{c.mediaKey(id, info), c.meta.MetadataKey(id)}
		candidates = append(candidates, candidate{recordingID: rid, roomID: id.RoomID, keys: k})
		keys = append(keys, k...)
	}

	if len(candidates) == 0 {
		return res, nil
	}

	failures, batchErr := c.blobs.DeleteMany(ctx, keys)
	rooms := make(map[string]struct{})
	for _, cand := range candidates {
		if batchErr != nil {
			err := model.Internal("delete recordings", batchErr)
			observe("bulk_delete", err)
			res.NotDeleted = append(res.NotDeleted, BulkDeleteFailure{RecordingID: cand.recordingID, Error: err.Error()})
			continue
		}
		if err := firstFailure(failures, cand.keys); err != nil {
			wrapped := model.Internal("delete recording objects", err)
			observe("bulk_delete", wrapped)
			res.NotDeleted = append(res.NotDeleted, BulkDeleteFailure{RecordingID: cand.recordingID, Error: wrapped.Error()})
			continue
		}
		observe("bulk_delete", nil)
		res.Deleted = append(res.Deleted, cand.recordingID)
		rooms[cand.roomID] = struct{}{}
	}

	for roomID := range rooms {
		c.cleanupRoomArchive(ctx, roomID)
	}
	c.logger.Info().
		Int("deleted", len(res.Deleted)).
		Int("not_deleted", len(res.NotDeleted)).
		Msg("bulk delete finished")
	return res, nil
}

func firstFailure(failures map[string]error, keys []string) error {
	for _, k := range keys {
		if err, ok := failures[k]; ok && err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// deletable loads the recording and checks it may be deleted.
func (c *Coordinator) deletable(ctx context.Context, recordingID string) (model.RecordingID, *model.RecordingInfo, error) {
	id, err := model.ParseRecordingID(recordingID)
	if err != nil {
		return id, nil, err
	}
	info, err := c.meta.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return id, nil, model.RecordingNotFound(recordingID)
		}
		return id, nil, model.Internal("get recording", err)
	}
	if info.RecordingID != id.String() || !info.Status.IsValid() {
		return id, nil, model.RecordingNotFound(recordingID)
	}
	if info.Status.IsInProgress() {
		return id, nil, model.RecordingNotStopped(recordingID)
	}
	return id, info, nil
}

func (c *Coordinator) mediaKey(id model.RecordingID, info *model.RecordingInfo) string {
	if info.Filename != "" {
		return c.meta.MediaKey(info.Filename)
	}
	return c.meta.MediaKey(model.RecordingFilePath(id.RoomID, id.UID))
}

// cleanupRoomArchive removes the room archive once no recording metadata is left
// for the room. Failures are logged only.
func (c *Coordinator) cleanupRoomArchive(ctx context.Context, roomID string) {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()
	logger := c.logger.With().Str(log.FieldRoomID, roomID).Logger()

	remaining, err := c.meta.ListUnderPrefix(ctx, c.meta.RoomMetadataPrefix(roomID))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list room metadata")
		return
	}
	if len(remaining) > 0 {
		return
	}
	if err := c.meta.Delete(ctx, c.meta.RoomArchiveKey(roomID)); err != nil {
		logger.Warn().Err(err).Msg("failed to delete room archive")
		return
	}
	logger.Debug().Msg("room archive removed")
}
