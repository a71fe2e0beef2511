package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(url string, fallback FallbackFunc) *PhotoGateway {
	return NewPhotoGateway(GatewayConfig{BaseURL: url + "/api", Timeout: 5 * time.Second, OpenTimeout: time.Minute}, fallback, nil)
}

func TestFetchPhotos(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes backend photos", func(t *testing.T) {
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/photos", r.URL.Path)
			query = r.URL.RawQuery
			_, _ = io.WriteString(w, `{"photos":[
				{"id":"1","key":"k/1.jpg","url":"https://b/k/1.jpg","fileName":"one.jpg","selectedDate":"2024-05-01T10:00:00.000Z","timestamp":1714900000000,"createdAt":"2024-05-01T10:00:00.000Z"},
				{"key":"k/2.jpg","url":"https://b/k/2.jpg","filename":"two.jpg","selectedDate":null,"timestamp":1714550400,"createdAt":""},
				{"url":"https://b/k/3.jpg","createdAt":"2024-04-30T08:00:00Z"}
			]}`)
		}))
		defer srv.Close()

		date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
		records := newTestGateway(srv.URL, nil).FetchPhotos(ctx, &date)

		assert.Equal(t, "date=2024-05-01", query)
		require.Len(t, records, 3)

		assert.Equal(t, "1", records[0].ID)
		assert.Equal(t, "one.jpg", records[0].Filename)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli(), records[0].CreationDate)
		assert.Equal(t, "https://b/k/1.jpg", records[0].URI)
		assert.Equal(t, "https://b/k/1.jpg", records[0].S3URL)
		assert.Equal(t, MediaImage, records[0].MediaType)
		assert.NotNil(t, records[0].Faces)

		assert.Equal(t, "k/2.jpg", records[1].ID)
		assert.Equal(t, "two.jpg", records[1].Filename)
		assert.Equal(t, int64(1714550400000), records[1].CreationDate)

		assert.Equal(t, "https://b/k/3.jpg", records[2].ID)
		assert.Equal(t, "photo", records[2].Filename)
		assert.Equal(t, time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC).UnixMilli(), records[2].CreationDate)
	})

	t.Run("falls back on server error", func(t *testing.T) {
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("date")
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		var fallbackDate *time.Time
		local := []MediaRecord{{ID: "local.jpg"}}
		gateway := newTestGateway(srv.URL, func(_ context.Context, date *time.Time) ([]MediaRecord, error) {
			fallbackDate = date
			return local, nil
		})

		date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
		records := gateway.FetchPhotos(ctx, &date)
		assert.Equal(t, "2024-05-01", query)
		assert.Equal(t, local, records)
		assert.Equal(t, &date, fallbackDate)
	})

	t.Run("unreachable backend without fallback", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		records := newTestGateway(srv.URL, nil).FetchPhotos(ctx, nil)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("open breaker skips backend", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		fallbacks := 0
		gateway := newTestGateway(srv.URL, func(context.Context, *time.Time) ([]MediaRecord, error) {
			fallbacks++
			return nil, nil
		})
		for i := 0; i < 5; i++ {
			assert.Empty(t, gateway.FetchPhotos(ctx, nil))
		}
		assert.Equal(t, 3, calls)
		assert.Equal(t, 5, fallbacks)
	})

	t.Run("local fallback filters device records", func(t *testing.T) {
		src := &pagedSource{assets: []Asset{
			{Filename: "a.jpg", Timestamp: seconds(1700000000)},
			{Filename: "b.jpg", Timestamp: seconds(1700086400)},
		}}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		gateway := newTestGateway(srv.URL, LocalFallback(NewPipeline(&memorySaver{}), src))
		date := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, []string{"a.jpg"}, ids(gateway.FetchPhotos(ctx, &date)))
	})
}

func TestUploadPhoto(t *testing.T) {
	ctx := context.Background()

	t.Run("posts multipart form", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/photos/upload", r.URL.Path)
			file, header, err := r.FormFile("photo")
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			content, _ := io.ReadAll(file)
			assert.Equal(t, "pixels", string(content))
			assert.Equal(t, "photo.jpg", header.Filename)
			assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
			assert.Equal(t, "2024-05-01T10:00:00Z", r.FormValue("selectedDate"))

			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"photo":{"id":"abc","key":"k","url":"https://b/k","fileName":"photo.jpg","selectedDate":"2024-05-01T10:00:00.000Z","timestamp":1714900000000,"createdAt":"2024-05-01T10:00:00.000Z"}}`)
		}))
		defer srv.Close()

		selected := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 7200))
		record, err := newTestGateway(srv.URL, nil).UploadPhoto(ctx, UploadRequest{
			Content:      bytes.NewReader([]byte("pixels")),
			SelectedDate: &selected,
		})
		require.NoError(t, err)
		assert.Equal(t, "abc", record.ID)
		assert.Equal(t, "https://b/k", record.S3URL)
		assert.Equal(t, selected.UnixMilli(), record.CreationDate)
	})

	t.Run("server message is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"File is required under `+"`photo`"+` field."}`)
		}))
		defer srv.Close()

		_, err := newTestGateway(srv.URL, nil).UploadPhoto(ctx, UploadRequest{Content: bytes.NewReader(nil)})
		assert.ErrorIs(t, err, ErrRemoteStatus)
		assert.Contains(t, err.Error(), "File is required")
	})

	t.Run("missing content", func(t *testing.T) {
		_, err := newTestGateway("http://127.0.0.1:1", nil).UploadPhoto(ctx, UploadRequest{})
		assert.ErrorIs(t, err, ErrNoFileBuffer)
	})
}
