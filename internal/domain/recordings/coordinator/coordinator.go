// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package coordinator owns the recording lifecycle: starting and stopping composed
// room recordings, the per-room active-recording lock, deletion, and the two
// background sweeps that clean up after crashes and missed events.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

const (
	TaskOrphanLockGC = "recording-orphan-lock-gc"
	TaskStaleGC      = "recording-stale-gc"

	cleanupTimeout = 10 * time.Second
)

// Config tunes the coordinator. Zero values fall back to DefaultConfig.
type Config struct {
	StartTimeout       time.Duration
	LockTTL            time.Duration
	Layout             string
	Encoding           string
	OrphanLockSchedule string
	LockGracePeriod    time.Duration
	StaleSchedule      string
	StaleThreshold     time.Duration
	StaleBatchSize     int
}

func DefaultConfig() Config {
	return Config{
		StartTimeout:       30 * time.Second,
		LockTTL:            6 * time.Hour,
		Layout:             "grid",
		OrphanLockSchedule: "@every 30m",
		LockGracePeriod:    2 * time.Minute,
		StaleSchedule:      "@every 15m",
		StaleThreshold:     5 * time.Minute,
		StaleBatchSize:     10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StartTimeout <= 0 {
		c.StartTimeout = d.StartTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.Layout == "" {
		c.Layout = d.Layout
	}
	if c.OrphanLockSchedule == "" {
		c.OrphanLockSchedule = d.OrphanLockSchedule
	}
	if c.LockGracePeriod <= 0 {
		c.LockGracePeriod = d.LockGracePeriod
	}
	if c.StaleSchedule == "" {
		c.StaleSchedule = d.StaleSchedule
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = d.StaleThreshold
	}
	if c.StaleBatchSize <= 0 {
		c.StaleBatchSize = d.StaleBatchSize
	}
	return c
}

// Deps are the collaborators the coordinator drives.
type Deps struct {
	Locker    ports.Locker
	Gateway   ports.Gateway
	Metadata  ports.MetadataStore
	Blobs     ports.BlobStore
	Rooms     ports.RoomStore
	Bus       ports.Bus
	Scheduler ports.Scheduler
}

func (d Deps) validate() error {
	var missing []string
	if d.Locker == nil {
		missing = append(missing, "Locker")
	}
	if d.Gateway == nil {
		missing = append(missing, "Gateway")
	}
	if d.Metadata == nil {
		missing = append(missing, "Metadata")
	}
	if d.Blobs == nil {
		missing = append(missing, "Blobs")
	}
	if d.Rooms == nil {
		missing = append(missing, "Rooms")
	}
	if d.Bus == nil {
		missing = append(missing, "Bus")
	}
	if d.Scheduler == nil {
		missing = append(missing, "Scheduler")
	}
	if len(missing) > 0 {
		return fmt.Errorf("coordinator: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Coordinator is safe for concurrent use. Per-room mutual exclusion comes from
// the active-recording lock only; there is no in-process locking.
type Coordinator struct {
	locker    ports.Locker
	gateway   ports.Gateway
	meta      ports.MetadataStore
	blobs     ports.BlobStore
	rooms     ports.RoomStore
	bus       ports.Bus
	scheduler ports.Scheduler

	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*Coordinator)

// WithClock replaces the time source used for lock age and staleness.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(deps Deps, cfg Config, opts ...Option) (*Coordinator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		locker:    deps.Locker,
		gateway:   deps.Gateway,
		meta:      deps.Metadata,
		blobs:     deps.Blobs,
		rooms:     deps.Rooms,
		bus:       deps.Bus,
		scheduler: deps.Scheduler,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		logger:    log.WithComponent("recordings"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RegisterSweeps schedules the orphan-lock and stale-recording sweeps.
func (c *Coordinator) RegisterSweeps() error {
	if err := c.scheduler.RegisterTask(ports.Task{
		Name:     TaskOrphanLockGC,
		Type:     ports.TaskCron,
		Schedule: c.cfg.OrphanLockSchedule,
		Callback: func(ctx context.Context) { c.SweepOrphanLocks(ctx) },
	}); err != nil {
		return fmt.Errorf("register %s: %w", TaskOrphanLockGC, err)
	}
	if err := c.scheduler.RegisterTask(ports.Task{
		Name:     TaskStaleGC,
		Type:     ports.TaskCron,
		Schedule: c.cfg.StaleSchedule,
		Callback: func(ctx context.Context) { c.SweepStaleRecordings(ctx) },
	}); err != nil {
		return fmt.Errorf("register %s: %w", TaskStaleGC, err)
	}
	return nil
}

// cleanupContext detaches best-effort cleanup from the caller's cancellation.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(model.CodeOf(err)))
	}
	metrics.IncRecordingOperation(op, result)
}

// persist writes info and announces the change on the status topic. The
// announcement is best-effort.
func (c *Coordinator) persist(ctx context.Context, info *model.RecordingInfo) error {
	if err := c.meta.Put(ctx, info); err != nil {
		return err
	}
	c.publish(ctx, model.TopicRecordingStatus, *info)
	return nil
}

func (c *Coordinator) publish(ctx context.Context, topic string, info model.RecordingInfo) {
	if err := c.bus.Publish(ctx, topic, model.NewRecordingEvent(info)); err != nil {
		c.logger.Warn().Err(err).
			Str(log.FieldTopic, topic).
			Str(log.FieldRecordingID, info.RecordingID).
			Msg("failed to publish recording event")
	}
}

func (c *Coordinator) releaseLock(ctx context.Context, roomID, reason string) bool {
	name := model.ActiveLockKey(roomID)
	if err := c.locker.Release(ctx, name); err != nil {
		c.logger.Warn().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldLock, name).
			Msg("failed to release active recording lock")
		return false
	}
	c.logger.Debug().
		Str(log.FieldRoomID, roomID).
		Str(log.FieldLock, name).
		Str("reason", reason).
		Msg("released active recording lock")
	return true
}

// infoFromEgress builds the document view of an egress session.
func infoFromEgress(id model.RecordingID, roomName string, e ports.EgressInfo) model.RecordingInfo {
	info := model.RecordingInfo{
		RecordingID: id.String(),
		RoomID:      id.RoomID,
		RoomName:    roomName,
		Status:      e.Status,
		Layout:      e.Layout,
		Encoding:    e.Encoding,
		Filename:    e.Filename,
		StartDate:   model.UnixMilli(e.StartedAt),
		EndDate:     model.UnixMilli(e.EndedAt),
		Size:        e.Size,
		Error:       e.Error,
		ErrorCode:   e.ErrorCode,
		Details:     e.Details,
	}
	if e.Duration > 0 {
		info.Duration = e.Duration.Seconds()
	}
	if info.RoomName == "" {
		info.RoomName = id.RoomID
	}
	return info
}

// recordingIDForEgress recovers the recording id of a session from the file path
// it was started with.
func recordingIDForEgress(e ports.EgressInfo) (model.RecordingID, error) {
	for _, p := range []string{e.FilePath, e.Filename} {
		if p == "" {
			continue
		}
		if uid, ok := model.UIDFromFilePath(p); ok {
			id, err := model.ParseRecordingID(model.NewRecordingID(e.RoomID, e.EgressID, uid).String())
			if err != nil {
				return model.RecordingID{}, model.Internal("derive recording id", err)
			}
			return id, nil
		}
	}
	return model.RecordingID{}, model.Internal("derive recording id",
		fmt.Errorf("egress %q has no recognizable file path", e.EgressID))
}
