// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

// StartRecording starts a composed recording of roomID and waits until the
// gateway confirms it is active or the start timeout elapses.
//
// The room must exist and have at least one publisher before the active-recording
// lock is taken; both checks run before the gateway is contacted.
func (c *Coordinator) StartRecording(ctx context.Context, roomID string) (info *model.RecordingInfo, err error) {
	began := time.Now()
	defer func() {
		observe("start", err)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ObserveRecordingStart(result, time.Since(began).Seconds())
	}()

	logger := log.WithComponentFromContext(ctx, "recordings").With().Str(log.FieldRoomID, roomID).Logger()

	room, err := c.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, model.RoomNotFound(roomID)
		}
		return nil, model.Internal("get room", err)
	}

	live, err := c.gateway.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ports.ErrRoomNotFound) {
			return nil, model.RoomHasNoParticipants(roomID)
		}
		return nil, model.Internal("get live room", err)
	}
	if live.NumPublishers == 0 {
		return nil, model.RoomHasNoParticipants(roomID)
	}

	lockName := model.ActiveLockKey(roomID)
	lk, err := c.locker.Acquire(ctx, lockName, c.cfg.LockTTL)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldLock, lockName).Msg("failed to acquire active recording lock")
		return nil, model.RecordingAlreadyStarted(roomID)
	}
	if lk == nil {
		return nil, model.RecordingAlreadyStarted(roomID)
	}

	// Runs after the subscription and timeout task below are torn down, so a
	// released lock never lets the next start's registrations be cancelled by ours.
	releaseLock := false
	defer func() {
		if releaseLock {
			c.releaseAfterTimeout(ctx, roomID)
			return
		}
		c.finalLockCheck(ctx, roomID)
	}()

	sub, err := c.bus.Subscribe(ctx, model.TopicRecordingActive(roomID))
	if err != nil {
		return nil, model.Internal("subscribe recording events", err)
	}
	defer func() { _ = sub.Close() }()

	waiter := newStartWaiter()
	taskName := model.StartTimeoutTaskName(roomID)
	if err := c.scheduler.RegisterTask(ports.Task{
		Name:     taskName,
		Type:     ports.TaskTimeout,
		Delay:    c.cfg.StartTimeout,
		Callback: func(context.Context) { waiter.resolve(startOutcome{timedOut: true}) },
	}); err != nil {
		return nil, model.Internal("schedule start timeout", err)
	}
	defer c.scheduler.CancelTask(taskName)

	layout := c.cfg.Layout
	if room.Preferences.Recording.Layout != "" {
		layout = room.Preferences.Recording.Layout
	}
	uid := model.NewUID()
	egress, err := c.gateway.StartRoomComposite(ctx, roomID, model.RecordingFilePath(roomID, uid), ports.StartOptions{
		Layout:   layout,
		Encoding: c.cfg.Encoding,
	})
	if err != nil {
		return nil, model.Internal("start egress", err)
	}

	id := model.NewRecordingID(roomID, egress.EgressID, uid)
	started := infoFromEgress(id, room.RoomName, *egress)
	if started.Layout == "" {
		started.Layout = layout
	}
	if started.Encoding == "" {
		started.Encoding = c.cfg.Encoding
	}
	if started.StartDate == 0 {
		started.StartDate = c.now().UnixMilli()
	}
	if !started.Status.IsInProgress() {
		started.Status = model.StatusStarting
	}
	logger = logger.With().Str(log.FieldRecordingID, id.String()).Str(log.FieldEgressID, egress.EgressID).Logger()

	// An early webhook may already have stored a newer status.
	if stored, err := c.meta.Get(ctx, id); err == nil {
		started = *stored
	} else if err := c.persist(ctx, &started); err != nil {
		logger.Error().Err(err).Msg("failed to store recording metadata")
	}
	if err := c.meta.PutRoomArchive(ctx, model.ArchiveOf(room)); err != nil {
		logger.Warn().Err(err).Msg("failed to store room archive")
	}

	if started.Status == model.StatusActive {
		logger.Info().Msg("recording active on start")
		return &started, nil
	}

	go forwardActive(sub, roomID, id.String(), waiter)

	select {
	case <-waiter.Done():
	case <-ctx.Done():
		logger.Warn().Err(ctx.Err()).Msg("start abandoned by caller")
		return nil, model.Internal("await recording start", ctx.Err())
	}

	outcome := waiter.Outcome()
	if !outcome.timedOut {
		active := outcome.event.Recording
		logger.Info().Msg("recording active")
		return &active, nil
	}

	logger.Warn().Dur("timeout", c.cfg.StartTimeout).Msg("recording start timed out")
	releaseLock = c.abortTimedOutStart(ctx, &started)
	return nil, model.RecordingStartTimeout(roomID)
}

// forwardActive resolves w with the first event for recordingID. It exits when
// the subscription is closed.
func forwardActive(sub ports.Subscription, roomID, recordingID string, w *startWaiter) {
	for evt := range sub.C() {
		if evt.RoomID != roomID || evt.RecordingID != recordingID {
			continue
		}
		w.resolve(startOutcome{event: evt})
		return
	}
}

// abortTimedOutStart marks the recording failed and stops it. It reports whether
// the active lock should be released; the lock is kept when the egress is still
// starting because its activation event may yet arrive.
func (c *Coordinator) abortTimedOutStart(ctx context.Context, info *model.RecordingInfo) bool {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()
	logger := c.logger.With().Str(log.FieldRecordingID, info.RecordingID).Logger()

	failed := *info
	failed.Status = model.StatusFailed
	failed.Error = "recording start timed out"
	failed.EndDate = c.now().UnixMilli()
	if err := c.persist(ctx, &failed); err != nil {
		logger.Warn().Err(err).Msg("failed to mark timed out recording as failed")
	}

	_, stopErr := c.stop(ctx, info.RecordingID)
	if errors.Is(stopErr, model.ErrRecordingCannotStopWhileStarting) {
		logger.Warn().Msg("egress still starting after timeout, keeping active lock")
		return false
	}
	if stopErr != nil {
		logger.Warn().Err(stopErr).Msg("failed to stop timed out recording")
	}
	return true
}

func (c *Coordinator) releaseAfterTimeout(ctx context.Context, roomID string) {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()
	c.releaseLock(ctx, roomID, "start timeout")
}

// finalLockCheck releases the room's lock unless the gateway reports an
// in-progress egress for it.
func (c *Coordinator) finalLockCheck(ctx context.Context, roomID string) {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()

	active, err := c.gateway.ListEgress(ctx, ports.EgressFilter{RoomID: roomID, ActiveOnly: true})
	if err != nil {
		c.logger.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("final lock check failed, keeping lock")
		return
	}
	if len(active) > 0 {
		return
	}
	c.releaseLock(ctx, roomID, "no in-progress egress")
}
