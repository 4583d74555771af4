// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordinator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

// Outcomes recorded by the sweeps.
const (
	OutcomeReleased = "released"
	OutcomeRetained = "retained"
	OutcomeYoung    = "young"
	OutcomeMissing  = "missing"
	OutcomeAborted  = "aborted"
	OutcomeRestop   = "restopped"
	OutcomeFresh    = "fresh"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// SweepOrphanLocks releases active-recording locks whose room has no in-progress
// egress. Locks younger than the grace period are left alone so an in-flight
// start is never disturbed. Room existence is informational only.
func (c *Coordinator) SweepOrphanLocks(ctx context.Context) map[string]string {
	logger := c.logger.With().Str(log.FieldTask, TaskOrphanLockGC).Logger()

	locks, err := c.locker.ListByPrefix(ctx, model.ActiveLockPrefix())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list active recording locks")
		return nil
	}

	outcomes := make(map[string]string, len(locks))
	for _, lk := range locks {
		outcome := c.sweepLock(ctx, lk)
		outcomes[lk.Name] = outcome
		metrics.IncLockGC(outcome)
	}
	logger.Info().Int("locks", len(locks)).Msg("orphan lock sweep finished")
	return outcomes
}

func (c *Coordinator) sweepLock(ctx context.Context, lk ports.Lock) string {
	logger := c.logger.With().Str(log.FieldLock, lk.Name).Logger()

	roomID, ok := model.RoomIDFromActiveLockKey(lk.Name)
	if !ok {
		logger.Warn().Msg("lock name does not carry a room id")
		return OutcomeError
	}
	logger = logger.With().Str(log.FieldRoomID, roomID).Logger()

	exists, err := c.locker.Exists(ctx, lk.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to check lock")
		return OutcomeError
	}
	if !exists {
		return OutcomeMissing
	}
	createdAt, ok, err := c.locker.CreatedAt(ctx, lk.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read lock age")
		return OutcomeError
	}
	if !ok {
		return OutcomeMissing
	}
	if age := c.now().Sub(createdAt); age < c.cfg.LockGracePeriod {
		logger.Debug().Dur("age", age).Msg("lock within grace period")
		return OutcomeYoung
	}

	roomExists, err := c.gateway.RoomExists(ctx, roomID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to check media room")
	} else if !roomExists {
		logger.Debug().Msg("media room no longer exists")
	}

	active, err := c.gateway.ListEgress(ctx, ports.EgressFilter{RoomID: roomID, ActiveOnly: true})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list egress for locked room")
		return OutcomeError
	}
	if len(active) > 0 {
		return OutcomeRetained
	}

	if err := c.locker.Release(ctx, lk.Name); err != nil {
		logger.Warn().Err(err).Msg("failed to release orphaned lock")
		return OutcomeError
	}
	logger.Info().Bool("room_exists", roomExists).Msg("released orphaned recording lock")
	return OutcomeReleased
}

// SweepStaleRecordings aborts in-progress recordings whose egress has not been
// updated within the staleness threshold. Recordings already marked aborted are
// not rewritten, but their egress is stopped again while it stays stale. Sessions are processed in batches of
// StaleBatchSize; one failure never stops the rest.
func (c *Coordinator) SweepStaleRecordings(ctx context.Context) map[string]string {
	logger := c.logger.With().Str(log.FieldTask, TaskStaleGC).Logger()

	sessions, err := c.gateway.ListEgress(ctx, ports.EgressFilter{ActiveOnly: true})
	if err != nil {
		logger.Error().Err(err).Msg("failed to list in-progress egress")
		return nil
	}

	outcomes := make(map[string]string, len(sessions))
	results := make([]string, len(sessions))
	for start := 0; start < len(sessions); start += c.cfg.StaleBatchSize {
		end := min(start+c.cfg.StaleBatchSize, len(sessions))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = c.sweepEgress(ctx, sessions[i])
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("stale recording sweep interrupted")
			break
		}
	}

	for i, s := range sessions {
		if results[i] == "" {
			continue
		}
		outcomes[s.EgressID] = results[i]
		metrics.IncStaleGC(results[i])
	}
	logger.Info().Int("sessions", len(sessions)).Msg("stale recording sweep finished")
	return outcomes
}

func (c *Coordinator) sweepEgress(ctx context.Context, e ports.EgressInfo) string {
	logger := c.logger.With().
		Str(log.FieldEgressID, e.EgressID).
		Str(log.FieldRoomID, e.RoomID).
		Logger()

	id, err := recordingIDForEgress(e)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot map egress to a recording")
		return OutcomeError
	}
	logger = logger.With().Str(log.FieldRecordingID, id.String()).Logger()

	info, err := c.meta.Get(ctx, id)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		fresh := infoFromEgress(id, c.roomName(ctx, id.RoomID), e)
		info = &fresh
	case err != nil:
		logger.Warn().Err(err).Msg("failed to read recording metadata")
		return OutcomeError
	}

	if e.UpdatedAt.IsZero() {
		logger.Warn().Msg("egress has no update timestamp, treating as fresh")
		return OutcomeSkipped
	}
	idle := c.now().Sub(e.UpdatedAt)
	if info.Status == model.StatusAborted {
		// Already marked; a stale egress means an earlier stop attempt failed.
		if idle <= c.cfg.StaleThreshold {
			return OutcomeSkipped
		}
		if _, err := c.gateway.StopEgress(ctx, e.EgressID); err != nil {
			logger.Warn().Err(err).Msg("failed to stop aborted egress")
			return OutcomeError
		}
		logger.Info().Dur("idle", idle).Msg("stopped egress of aborted recording")
		return OutcomeRestop
	}
	if idle <= c.cfg.StaleThreshold {
		return OutcomeFresh
	}

	info.Status = model.StatusAborted
	info.Details = "no status update for " + idle.Truncate(time.Second).String()
	if info.EndDate == 0 {
		info.EndDate = c.now().UnixMilli()
	}
	if err := c.persist(ctx, info); err != nil {
		logger.Warn().Err(err).Msg("failed to mark stale recording aborted")
		return OutcomeError
	}
	if _, err := c.gateway.StopEgress(ctx, e.EgressID); err != nil {
		logger.Warn().Err(err).Msg("failed to stop stale egress")
		return OutcomeError
	}
	logger.Info().Dur("idle", idle).Msg("aborted stale recording")
	return OutcomeAborted
}
