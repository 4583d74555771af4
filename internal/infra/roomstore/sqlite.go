// Package roomstore persists meeting rooms.
package roomstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/persistence/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id            TEXT PRIMARY KEY,
	room_name          TEXT NOT NULL,
	created_at_ms      INTEGER NOT NULL,
	auto_deletion_ms   INTEGER NOT NULL DEFAULT 0,
	recording_enabled  BOOLEAN NOT NULL DEFAULT 1,
	recording_layout   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms(created_at_ms);
`

// SqliteStore implements ports.RoomStore using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("room store: migration failed: %w", err)
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	row := s.DB.QueryRowContext(ctx, `
	SELECT room_id, room_name, created_at_ms, auto_deletion_ms, recording_enabled, recording_layout
	FROM rooms WHERE room_id = ?`, roomID)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %q: %w", roomID, err)
	}
	return room, nil
}

func (s *SqliteStore) PutRoom(ctx context.Context, room *model.Room) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO rooms (room_id, room_name, created_at_ms, auto_deletion_ms, recording_enabled, recording_layout)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(room_id) DO UPDATE SET
		room_name = excluded.room_name,
		auto_deletion_ms = excluded.auto_deletion_ms,
		recording_enabled = excluded.recording_enabled,
		recording_layout = excluded.recording_layout`,
		room.RoomID, room.RoomName, room.CreatedAt, room.AutoDeletionDate,
		room.Preferences.Recording.Enabled, room.Preferences.Recording.Layout,
	)
	if err != nil {
		return fmt.Errorf("put room %q: %w", room.RoomID, err)
	}
	return nil
}

func (s *SqliteStore) DeleteRoom(ctx context.Context, roomID string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM rooms WHERE room_id = ?", roomID)
	if err != nil {
		return fmt.Errorf("delete room %q: %w", roomID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *SqliteStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT room_id, room_name, created_at_ms, auto_deletion_ms, recording_enabled, recording_layout
	FROM rooms ORDER BY created_at_ms, room_id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		out = append(out, *room)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(sc scanner) (*model.Room, error) {
	var r model.Room
	err := sc.Scan(&r.RoomID, &r.RoomName, &r.CreatedAt, &r.AutoDeletionDate,
		&r.Preferences.Recording.Enabled, &r.Preferences.Recording.Layout)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

var _ ports.RoomStore = (*SqliteStore)(nil)
