package app

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	saved []MediaRecord
	fail  map[string]error
}

func (m *memorySaver) UpsertMedia(_ context.Context, record MediaRecord) error {
	if err := m.fail[record.ID]; err != nil {
		return err
	}
	m.saved = append(m.saved, record)
	return nil
}

// pagedSource serves assets in pages and records the cursors it was asked for.
type pagedSource struct {
	assets  []Asset
	cursors []string
	failAt  int
}

func (s *pagedSource) FetchPage(_ context.Context, after string, first int) (Page, error) {
	s.cursors = append(s.cursors, after)
	if s.failAt > 0 && len(s.cursors) == s.failAt {
		return Page{}, errors.New("source offline")
	}
	offset := 0
	if after != "" {
		offset, _ = strconv.Atoi(after)
	}
	end := offset + first
	if end > len(s.assets) {
		end = len(s.assets)
	}
	page := Page{Assets: s.assets[offset:end], HasNextPage: end < len(s.assets)}
	if page.HasNextPage {
		page.EndCursor = strconv.Itoa(end)
	}
	return page, nil
}

type extractorFunc func(ctx context.Context, uri string) (map[string]any, error)

func (f extractorFunc) Extract(ctx context.Context, uri string) (map[string]any, error) {
	return f(ctx, uri)
}

type detectorFunc func(ctx context.Context, uri string) ([]FaceTag, error)

func (f detectorFunc) Detect(ctx context.Context, uri string) ([]FaceTag, error) {
	return f(ctx, uri)
}

func seconds(v float64) *float64 { return &v }

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("skips asset failing enrichment", func(t *testing.T) {
		src := &pagedSource{assets: []Asset{
			{URI: "file:///p/1.jpg", Filename: "1.jpg", Timestamp: seconds(1700000000)},
			{URI: "file:///p/2.jpg", Filename: "2.jpg", Timestamp: seconds(1700000001)},
			{URI: "file:///p/3.jpg", Filename: "3.jpg", Timestamp: seconds(1700000002)},
		}}
		extractor := extractorFunc(func(_ context.Context, uri string) (map[string]any, error) {
			if uri == "file:///p/2.jpg" {
				panic("corrupt header")
			}
			return map[string]any{"Make": "Canon"}, nil
		})
		saver := &memorySaver{}
		var progress [][2]int

		records, err := NewPipeline(saver, WithMetadataExtractor(extractor)).Ingest(ctx, src, func(done, total int) {
			progress = append(progress, [2]int{done, total})
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"1.jpg", "3.jpg"}, ids(records))
		assert.Equal(t, [][2]int{{1, 1}, {1, 2}, {2, 3}}, progress)
		assert.Len(t, saver.saved, 2)
		assert.Equal(t, int64(1700000000000), records[0].CreationDate)
		assert.Equal(t, "Canon", records[0].Exif["Make"])
	})

	t.Run("pages through source", func(t *testing.T) {
		assets := make([]Asset, 450)
		for i := range assets {
			name := strconv.Itoa(i) + ".jpg"
			assets[i] = Asset{URI: "file:///p/" + name, Filename: name, Timestamp: seconds(1700000000)}
		}
		src := &pagedSource{assets: assets}

		records, err := NewPipeline(&memorySaver{}).Ingest(ctx, src, nil)
		require.NoError(t, err)
		assert.Len(t, records, 450)
		assert.Equal(t, []string{"", "200", "400"}, src.cursors)
	})

	t.Run("page failure keeps collected records", func(t *testing.T) {
		assets := make([]Asset, 250)
		for i := range assets {
			assets[i] = Asset{Filename: strconv.Itoa(i) + ".jpg"}
		}
		src := &pagedSource{assets: assets, failAt: 2}

		records, err := NewPipeline(&memorySaver{}).Ingest(ctx, src, nil)
		assert.Error(t, err)
		assert.Len(t, records, PageSize)
	})

	t.Run("malformed and unsaved assets are skipped", func(t *testing.T) {
		src := &pagedSource{assets: []Asset{
			{},
			{Filename: "broken.jpg"},
			{Filename: "ok.jpg"},
		}}
		saver := &memorySaver{fail: map[string]error{"broken.jpg": errors.New("disk full")}}

		records, err := NewPipeline(saver).Ingest(ctx, src, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"ok.jpg"}, ids(records))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		records, err := NewPipeline(&memorySaver{}).Ingest(cancelled, &pagedSource{}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, records)
	})
}

func TestBuildRecord(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1600000000000)
	pipeline := NewPipeline(&memorySaver{}, WithClock(func() time.Time { return now }))

	t.Run("malformed", func(t *testing.T) {
		_, err := pipeline.BuildRecord(ctx, Asset{})
		assert.ErrorIs(t, err, ErrMalformedAsset)
	})

	t.Run("video by duration", func(t *testing.T) {
		r, err := pipeline.BuildRecord(ctx, Asset{URI: "file:///v/clip.mov", PlayableDuration: 3.5})
		require.NoError(t, err)
		assert.Equal(t, MediaVideo, r.MediaType)
		assert.Equal(t, "file:///v/clip.mov", r.ID)
		assert.Equal(t, "clip.mov", r.Filename)
		assert.Equal(t, now.UnixMilli(), r.CreationDate)
		assert.NotNil(t, r.Faces)
		assert.Empty(t, r.Faces)
	})

	t.Run("video by type", func(t *testing.T) {
		r, err := pipeline.BuildRecord(ctx, Asset{Filename: "a.mp4", Type: "video/mp4"})
		require.NoError(t, err)
		assert.Equal(t, MediaVideo, r.MediaType)
	})

	t.Run("timestamp candidates", func(t *testing.T) {
		r, err := pipeline.BuildRecord(ctx, Asset{
			Filename:     "a.jpg",
			CreationTime: seconds(1700000000000),
			CreatedAt:    "2020-01-01T00:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000000), r.CreationDate)

		r, err = pipeline.BuildRecord(ctx, Asset{Filename: "a.jpg", SelectedDate: "2024-05-01T10:00:00.000Z", Timestamp: seconds(1)})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli(), r.CreationDate)
	})

	t.Run("faces for images only", func(t *testing.T) {
		calls := 0
		detector := detectorFunc(func(_ context.Context, uri string) ([]FaceTag, error) {
			calls++
			return []FaceTag{{ID: "7", Bounds: &Rect{X: 1, Y: 1, Width: 10, Height: 10}}}, nil
		})
		p := NewPipeline(&memorySaver{}, WithFaceDetector(detector))

		img, err := p.BuildRecord(ctx, Asset{URI: "file:///p/a.jpg", Filename: "a.jpg"})
		require.NoError(t, err)
		require.Len(t, img.Faces, 1)
		assert.Equal(t, "a.jpg", img.Faces[0].MediaID)

		vid, err := p.BuildRecord(ctx, Asset{URI: "file:///p/a.mov", Filename: "a.mov", PlayableDuration: 1})
		require.NoError(t, err)
		assert.Empty(t, vid.Faces)
		assert.Equal(t, 1, calls)
	})

	t.Run("enrichment errors leave fields empty", func(t *testing.T) {
		p := NewPipeline(&memorySaver{},
			WithMetadataExtractor(extractorFunc(func(context.Context, string) (map[string]any, error) {
				return nil, ErrNoMetadata
			})),
			WithFaceDetector(detectorFunc(func(context.Context, string) ([]FaceTag, error) {
				return nil, errors.New("ml down")
			})))
		r, err := p.BuildRecord(ctx, Asset{URI: "file:///p/a.jpg"})
		require.NoError(t, err)
		assert.Nil(t, r.Exif)
		assert.Empty(t, r.Faces)
		assert.Equal(t, "a.jpg", r.Filename)
	})
}
