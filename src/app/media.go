package app

import "time"

// MediaType is the kind of asset a MediaRecord points at.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Rect is a face region in the coordinate space of the source image.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceTag represents one detected or tagged face.
type FaceTag struct {
	// Unique per face occurrence.
	ID string `json:"id"`

	// The MediaRecord the face was found on. Back-reference only.
	MediaID string `json:"mediaId"`

	// Nil when the detector reported no bounds.
	Bounds *Rect `json:"bounds,omitempty"`
}

// MediaRecord represents one photo or video.
type MediaRecord struct {
	// Stable identifier: filename, remote key or URI.
	ID string `json:"id"`

	// Locator used to display or fetch the asset.
	URI string `json:"uri"`

	// Remote locator, set for records served by the backend.
	URL string `json:"url,omitempty"`

	Filename  string    `json:"filename"`
	MediaType MediaType `json:"mediaType"`

	// Canonical timestamp in epoch milliseconds.
	CreationDate int64 `json:"creationDate"`

	// Present once the asset has been stored in object storage.
	S3URL string `json:"s3Url,omitempty"`

	// Opaque metadata, nil when extraction failed or is unsupported.
	Exif map[string]any `json:"exif,omitempty"`

	Faces []FaceTag `json:"faces"`
}

// Created returns CreationDate as a time in loc.
func (m MediaRecord) Created(loc *time.Location) time.Time {
	return time.UnixMilli(m.CreationDate).In(loc)
}

// HasFace reports whether a face with the given id was tagged on the record.
func (m MediaRecord) HasFace(faceID string) bool {
	for _, f := range m.Faces {
		if f.ID == faceID {
			return true
		}
	}
	return false
}

// PhotoRecord is an entry of the backend's flat photo index.
type PhotoRecord struct {
	ID           string  `json:"id"`
	Key          string  `json:"key"`
	URL          string  `json:"url"`
	FileName     string  `json:"fileName"`
	SelectedDate *string `json:"selectedDate"`
	Timestamp    int64   `json:"timestamp"`
	CreatedAt    string  `json:"createdAt"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
}
