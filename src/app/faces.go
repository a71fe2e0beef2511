package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type (
	// MLFaceDetector sends images to an external face detection server.
	MLFaceDetector struct {
		host   string
		client *http.Client
	}

	mlFace struct {
		TrackingID json.RawMessage `json:"trackingId"`
		Bounds     *Rect           `json:"bounds"`
	}

	mlFacesResponse struct {
		Faces []mlFace `json:"faces"`
	}
)

func NewMLFaceDetector(host string, timeout time.Duration) *MLFaceDetector {
	return &MLFaceDetector{host: host, client: newHTTPClient(timeout)}
}

func (d *MLFaceDetector) Detect(ctx context.Context, uri string) ([]FaceTag, error) {
	localPath := LocalPath(uri)
	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	body, contentType, err := prepareMultipartFile(nil, formFile{
		field:       "image",
		name:        filepath.Base(localPath),
		contentType: mediaMIME(localPath),
		content:     file,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.host+"/faces", body)
	if err != nil {
		return nil, fmt.Errorf("error during request prepare: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error during request sending: %w", err)
	}
	raw, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var parsed mlFacesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("can not unmarshall faces: %w", err)
	}
	faces := make([]FaceTag, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		faces = append(faces, FaceTag{ID: trackingID(f.TrackingID), MediaID: uri, Bounds: f.Bounds})
	}
	return faces, nil
}

// trackingID accepts numeric and string ids; a missing id gets a random one.
func trackingID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && n != "" {
		return n.String()
	}
	return uuid.NewString()
}
