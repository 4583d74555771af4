package coordinator

import (
	"context"
	"errors"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
)

// CreateRoom stores a room. An empty roomID gets a generated one.
func (c *Coordinator) CreateRoom(ctx context.Context, room model.Room) (*model.Room, error) {
	if room.RoomID == "" {
		room.RoomID = "room-" + model.NewUID()
	}
	if !model.IsSafeRoomID(room.RoomID) {
		return nil, model.InvalidRoomID(room.RoomID)
	}
	if room.RoomName == "" {
		room.RoomName = room.RoomID
	}
	if room.CreatedAt == 0 {
		room.CreatedAt = c.now().UnixMilli()
	}
	if err := c.rooms.PutRoom(ctx, &room); err != nil {
		return nil, model.Internal("put room", err)
	}
	c.logger.Info().Str(log.FieldRoomID, room.RoomID).Msg("room stored")
	return c.GetRoom(ctx, room.RoomID)
}

func (c *Coordinator) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := c.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, model.RoomNotFound(roomID)
		}
		return nil, model.Internal("get room", err)
	}
	return room, nil
}

func (c *Coordinator) ListRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := c.rooms.ListRooms(ctx)
	if err != nil {
		return nil, model.Internal("list rooms", err)
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	return rooms, nil
}

// DeleteRoom removes the room. Its recordings stay attributable through the
// room archive written when they were started.
func (c *Coordinator) DeleteRoom(ctx context.Context, roomID string) error {
	if err := c.rooms.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return model.RoomNotFound(roomID)
		}
		return model.Internal("delete room", err)
	}
	c.logger.Info().Str(log.FieldRoomID, roomID).Msg("room deleted")
	return nil
}
