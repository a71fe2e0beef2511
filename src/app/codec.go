package app

import (
	"encoding/json"
	"fmt"
)

type (
	// StoredFace is the flat shape of a FaceTag: bounds are inlined and null
	// when unknown.
	StoredFace struct {
		ID      string   `json:"id"`
		MediaID string   `json:"mediaId"`
		X       *float64 `json:"x"`
		Y       *float64 `json:"y"`
		Width   *float64 `json:"width"`
		Height  *float64 `json:"height"`
	}

	// StoredMedia is the string-safe shape of a MediaRecord kept in the
	// key-value store. Exif is a JSON document in a string.
	StoredMedia struct {
		ID           string       `json:"id"`
		URI          string       `json:"uri"`
		URL          *string      `json:"url,omitempty"`
		Filename     string       `json:"filename"`
		MediaType    MediaType    `json:"mediaType"`
		CreationDate int64        `json:"creationDate"`
		S3URL        *string      `json:"s3Url"`
		Exif         *string      `json:"exif"`
		Faces        []StoredFace `json:"faces"`
	}
)

// FaceToStorage flattens a face's bounds into sibling fields.
func FaceToStorage(f FaceTag) StoredFace {
	sf := StoredFace{ID: f.ID, MediaID: f.MediaID}
	if f.Bounds != nil {
		x, y, w, h := f.Bounds.X, f.Bounds.Y, f.Bounds.Width, f.Bounds.Height
		sf.X, sf.Y, sf.Width, sf.Height = &x, &y, &w, &h
	}
	return sf
}

// FaceFromStorage rebuilds bounds only when x is set.
func FaceFromStorage(sf StoredFace) FaceTag {
	f := FaceTag{ID: sf.ID, MediaID: sf.MediaID}
	if sf.X != nil {
		f.Bounds = &Rect{X: *sf.X, Y: deref(sf.Y), Width: deref(sf.Width), Height: deref(sf.Height)}
	}
	return f
}

// ToStorage converts a record into its storage shape.
func ToStorage(r MediaRecord) (StoredMedia, error) {
	sm := StoredMedia{
		ID:           r.ID,
		URI:          r.URI,
		Filename:     r.Filename,
		MediaType:    r.MediaType,
		CreationDate: r.CreationDate,
	}
	if r.URL != "" {
		sm.URL = &r.URL
	}
	if r.S3URL != "" {
		sm.S3URL = &r.S3URL
	}
	if r.Exif != nil {
		raw, err := json.Marshal(r.Exif)
		if err != nil {
			return StoredMedia{}, fmt.Errorf("encode exif of %s: %w", r.ID, err)
		}
		s := string(raw)
		sm.Exif = &s
	}
	if r.Faces != nil {
		sm.Faces = make([]StoredFace, 0, len(r.Faces))
		for _, f := range r.Faces {
			sm.Faces = append(sm.Faces, FaceToStorage(f))
		}
	}
	return sm, nil
}

// FromStorage converts a stored record back. A malformed exif document is
// returned as an error.
func FromStorage(sm StoredMedia) (MediaRecord, error) {
	r := MediaRecord{
		ID:           sm.ID,
		URI:          sm.URI,
		URL:          deref(sm.URL),
		Filename:     sm.Filename,
		MediaType:    sm.MediaType,
		CreationDate: sm.CreationDate,
		S3URL:        deref(sm.S3URL),
	}
	if sm.Exif != nil && *sm.Exif != "" {
		var exif map[string]any
		if err := json.Unmarshal([]byte(*sm.Exif), &exif); err != nil {
			return MediaRecord{}, fmt.Errorf("decode exif of %s: %w", sm.ID, err)
		}
		r.Exif = exif
	}
	if sm.Faces != nil {
		r.Faces = make([]FaceTag, 0, len(sm.Faces))
		for _, sf := range sm.Faces {
			r.Faces = append(r.Faces, FaceFromStorage(sf))
		}
	}
	return r, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
