package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	app "albumserv/src/app"
)

const (
	MediaKey = "MEDIA_RECORDS"
	FaceKey  = "FACE_RECORDS"
)

// MediaStore persists media and face records as two JSON documents in a
// KeyValue. Every write rewrites both documents; concurrent writers must be
// serialized by the caller.
type MediaStore struct {
	kv KeyValue
}

func NewMediaStore(kv KeyValue) *MediaStore {
	return &MediaStore{kv: kv}
}

// ReadAll loads both collections. Missing keys read as empty collections.
func (s *MediaStore) ReadAll(ctx context.Context) ([]app.MediaRecord, []app.FaceTag, error) {
	media, err := s.readMedia(ctx)
	if err != nil {
		return nil, nil, err
	}
	faces, err := s.readFaces(ctx)
	if err != nil {
		return nil, nil, err
	}
	return media, faces, nil
}

// UpsertMedia replaces the record with the same id or appends it, and merges
// its faces into the face collection.
func (s *MediaStore) UpsertMedia(ctx context.Context, record app.MediaRecord) error {
	media, faces, err := s.ReadAll(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range media {
		if media[i].ID == record.ID {
			media[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		media = append(media, record)
	}

	return s.persist(ctx, media, MergeFaces(faces, record.Faces))
}

// MergeFaces dedupes faces by id. A later face replaces an earlier one in
// the earlier one's position.
func MergeFaces(sources ...[]app.FaceTag) []app.FaceTag {
	index := make(map[string]int)
	merged := make([]app.FaceTag, 0)
	for _, faces := range sources {
		for _, f := range faces {
			if i, ok := index[f.ID]; ok {
				merged[i] = f
				continue
			}
			index[f.ID] = len(merged)
			merged = append(merged, f)
		}
	}
	return merged
}

// GetAllMedia returns every record, newest first.
func (s *MediaStore) GetAllMedia(ctx context.Context) ([]app.MediaRecord, error) {
	media, err := s.readMedia(ctx)
	if err != nil {
		return nil, err
	}
	return app.SortNewest(media), nil
}

func (s *MediaStore) GetAllFaces(ctx context.Context) ([]app.FaceTag, error) {
	return s.readFaces(ctx)
}

func (s *MediaStore) GetMediaByFaceID(ctx context.Context, faceID string) ([]app.MediaRecord, error) {
	media, err := s.readMedia(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]app.MediaRecord, 0)
	for _, m := range media {
		if m.HasFace(faceID) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// GetMediaByDate returns the records of date's calendar day, newest first.
func (s *MediaStore) GetMediaByDate(ctx context.Context, date *time.Time) ([]app.MediaRecord, error) {
	media, err := s.readMedia(ctx)
	if err != nil {
		return nil, err
	}
	return app.FilterByDate(media, date), nil
}

func (s *MediaStore) readMedia(ctx context.Context) ([]app.MediaRecord, error) {
	var stored []app.StoredMedia
	if err := s.getJSON(ctx, MediaKey, &stored); err != nil {
		return nil, err
	}
	media := make([]app.MediaRecord, 0, len(stored))
	for _, sm := range stored {
		m, err := app.FromStorage(sm)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", MediaKey, err)
		}
		media = append(media, m)
	}
	return media, nil
}

func (s *MediaStore) readFaces(ctx context.Context) ([]app.FaceTag, error) {
	var stored []app.StoredFace
	if err := s.getJSON(ctx, FaceKey, &stored); err != nil {
		return nil, err
	}
	faces := make([]app.FaceTag, 0, len(stored))
	for _, sf := range stored {
		faces = append(faces, app.FaceFromStorage(sf))
	}
	return faces, nil
}

func (s *MediaStore) persist(ctx context.Context, media []app.MediaRecord, faces []app.FaceTag) error {
	storedMedia := make([]app.StoredMedia, 0, len(media))
	for _, m := range media {
		sm, err := app.ToStorage(m)
		if err != nil {
			return err
		}
		storedMedia = append(storedMedia, sm)
	}
	storedFaces := make([]app.StoredFace, 0, len(faces))
	for _, f := range faces {
		storedFaces = append(storedFaces, app.FaceToStorage(f))
	}
	if err := s.setJSON(ctx, MediaKey, storedMedia); err != nil {
		return err
	}
	return s.setJSON(ctx, FaceKey, storedFaces)
}

func (s *MediaStore) getJSON(ctx context.Context, key string, dst any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *MediaStore) setJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(raw))
}
