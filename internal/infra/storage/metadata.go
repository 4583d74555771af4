// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
)

const (
	metadataDir     = ".metadata"
	roomMetadataDir = ".room_metadata"
	roomArchiveFile = "room_metadata.json"
	contentTypeJSON = "application/json"
)

// MetadataStore keeps recording documents and room archives as JSON objects
// next to the media files:
//
//	{prefix}{roomId}/{roomId}--{uid}.mp4
//	{prefix}.metadata/{roomId}/{egressId}/{uid}.json
//	{prefix}.room_metadata/{roomId}/room_metadata.json
type MetadataStore struct {
	blobs  ports.BlobStore
	prefix string
}

// NewMetadataStore lays documents out under prefix, e.g. "recordings/".
func NewMetadataStore(blobs ports.BlobStore, prefix string) *MetadataStore {
	return &MetadataStore{blobs: blobs, prefix: prefix}
}

func (s *MetadataStore) MetadataKey(id model.RecordingID) string {
	return s.prefix + path.Join(metadataDir, id.RoomID, id.EgressID, id.UID+".json")
}

func (s *MetadataStore) MediaKey(filename string) string {
	return s.prefix + filename
}

func (s *MetadataStore) RoomMetadataPrefix(roomID string) string {
	if roomID == "" {
		return s.prefix + metadataDir + "/"
	}
	return s.prefix + metadataDir + "/" + roomID + "/"
}

func (s *MetadataStore) RoomArchiveKey(roomID string) string {
	return s.prefix + path.Join(roomMetadataDir, roomID, roomArchiveFile)
}

func (s *MetadataStore) Get(ctx context.Context, id model.RecordingID) (*model.RecordingInfo, error) {
	return s.GetByKey(ctx, s.MetadataKey(id))
}

func (s *MetadataStore) GetByKey(ctx context.Context, key string) (*model.RecordingInfo, error) {
	var info model.RecordingInfo
	if err := s.getJSON(ctx, key, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *MetadataStore) Put(ctx context.Context, info *model.RecordingInfo) error {
	id, err := info.ID()
	if err != nil {
		return err
	}
	return s.putJSON(ctx, s.MetadataKey(id), info)
}

func (s *MetadataStore) Delete(ctx context.Context, key string) error {
	return s.blobs.Delete(ctx, key)
}

func (s *MetadataStore) ListUnderPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

func (s *MetadataStore) PutRoomArchive(ctx context.Context, archive model.RoomArchive) error {
	return s.putJSON(ctx, s.RoomArchiveKey(archive.RoomID), archive)
}

func (s *MetadataStore) GetRoomArchive(ctx context.Context, roomID string) (*model.RoomArchive, error) {
	var archive model.RoomArchive
	if err := s.getJSON(ctx, s.RoomArchiveKey(roomID), &archive); err != nil {
		return nil, err
	}
	return &archive, nil
}

func (s *MetadataStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ports.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

func (s *MetadataStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.blobs.Put(ctx, key, data, contentTypeJSON)
}

var _ ports.MetadataStore = (*MetadataStore)(nil)
