package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const dateParamLayout = "2006-01-02"

type (
	// FallbackFunc produces records for date when the backend is unreachable.
	FallbackFunc func(ctx context.Context, date *time.Time) ([]MediaRecord, error)

	// PhotoGateway talks to the backend's photo index.
	PhotoGateway struct {
		baseURL  string
		client   *http.Client
		breaker  *gobreaker.CircuitBreaker
		fallback FallbackFunc
		log      *zap.SugaredLogger
		now      func() time.Time
	}

	GatewayConfig struct {
		BaseURL     string
		Timeout     time.Duration
		MaxFailures uint32
		OpenTimeout time.Duration
	}

	UploadRequest struct {
		Content      io.Reader
		FileName     string
		MimeType     string
		SelectedDate *time.Time
	}

	// remotePhoto accepts both spellings of the filename field.
	remotePhoto struct {
		PhotoRecord
		Filename string `json:"filename"`
	}

	photosResponse struct {
		Photos []remotePhoto `json:"photos"`
	}

	photoResponse struct {
		Photo remotePhoto `json:"photo"`
	}

	errorResponse struct {
		Message string `json:"message"`
	}
)

func NewPhotoGateway(conf GatewayConfig, fallback FallbackFunc, logger *zap.SugaredLogger) *PhotoGateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	maxFailures := conf.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	st := gobreaker.Settings{
		Name:        "photo-api",
		MaxRequests: 1,
		Timeout:     conf.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &PhotoGateway{
		baseURL:  strings.TrimRight(conf.BaseURL, "/"),
		client:   newHTTPClient(conf.Timeout),
		breaker:  gobreaker.NewCircuitBreaker(st),
		fallback: fallback,
		log:      logger,
		now:      time.Now,
	}
}

// FetchPhotos lists the backend photos for date, or all photos when date is
// nil. When the backend fails the fallback is used instead; an empty result
// means both failed. It never returns an error.
func (g *PhotoGateway) FetchPhotos(ctx context.Context, date *time.Time) []MediaRecord {
	records, err := g.fetchRemote(ctx, date)
	if err == nil {
		return records
	}
	g.log.Warnw("failed to fetch photos", "error", err)
	if g.fallback == nil {
		return []MediaRecord{}
	}
	local, err := g.fallback(ctx, date)
	if err != nil {
		g.log.Warnw("local fallback failed", "error", err)
		return []MediaRecord{}
	}
	if local == nil {
		return []MediaRecord{}
	}
	return local
}

func (g *PhotoGateway) fetchRemote(ctx context.Context, date *time.Time) ([]MediaRecord, error) {
	endpoint, err := url.Parse(g.baseURL + "/photos")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if date != nil {
		q := endpoint.Query()
		q.Set("date", date.Format(dateParamLayout))
		endpoint.RawQuery = q.Encode()
	}

	raw, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		return readResponse(resp)
	})
	if err != nil {
		return nil, err
	}

	var payload photosResponse
	if err := json.Unmarshal(raw.([]byte), &payload); err != nil {
		return nil, fmt.Errorf("can not unmarshall photos: %w", err)
	}
	now := g.now()
	records := make([]MediaRecord, 0, len(payload.Photos))
	for _, p := range payload.Photos {
		records = append(records, p.toMediaRecord(now))
	}
	return records, nil
}

// UploadPhoto posts a photo to the backend and returns the stored record.
func (g *PhotoGateway) UploadPhoto(ctx context.Context, r UploadRequest) (MediaRecord, error) {
	if r.Content == nil {
		return MediaRecord{}, ErrNoFileBuffer
	}
	name := r.FileName
	if name == "" {
		name = "photo.jpg"
	}
	mimeType := r.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	fields := map[string]string{}
	if r.SelectedDate != nil {
		fields["selectedDate"] = r.SelectedDate.UTC().Format(time.RFC3339Nano)
	}
	body, contentType, err := prepareMultipartFile(fields, formFile{
		field:       "photo",
		name:        name,
		contentType: mimeType,
		content:     r.Content,
	})
	if err != nil {
		return MediaRecord{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/photos/upload", body)
	if err != nil {
		return MediaRecord{}, fmt.Errorf("error during request prepare: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := g.client.Do(req)
	if err != nil {
		return MediaRecord{}, fmt.Errorf("error during request sending: %w", err)
	}
	raw, err := readResponse(resp)
	if err != nil {
		var failure errorResponse
		if errors.Is(err, ErrRemoteStatus) && json.Unmarshal(raw, &failure) == nil && failure.Message != "" {
			return MediaRecord{}, fmt.Errorf("%w: %s", err, failure.Message)
		}
		return MediaRecord{}, err
	}
	var payload photoResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return MediaRecord{}, fmt.Errorf("can not unmarshall photo: %w", err)
	}
	return payload.Photo.toMediaRecord(g.now()), nil
}

func (p remotePhoto) toMediaRecord(now time.Time) MediaRecord {
	id := firstNonEmpty(p.ID, p.Key, p.URL)
	selected := ""
	if p.SelectedDate != nil {
		selected = *p.SelectedDate
	}
	var numeric []*float64
	if p.Timestamp != 0 {
		ts := float64(p.Timestamp)
		numeric = append(numeric, &ts)
	}
	return MediaRecord{
		ID:        id,
		URI:       p.URL,
		URL:       p.URL,
		Filename:  firstNonEmpty(p.FileName, p.Filename, "photo"),
		MediaType: MediaImage,
		CreationDate: ResolveCreationDate(TimestampCandidates{
			Selected:  selected,
			Numeric:   numeric,
			CreatedAt: p.CreatedAt,
		}, now),
		S3URL: p.URL,
		Faces: []FaceTag{},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LocalFallback ingests the device source and keeps the records for date.
func LocalFallback(pipeline *Pipeline, source Source) FallbackFunc {
	return func(ctx context.Context, date *time.Time) ([]MediaRecord, error) {
		records, err := pipeline.Ingest(ctx, source, nil)
		if err != nil && len(records) == 0 {
			return nil, err
		}
		return FilterByDate(records, date), nil
	}
}
