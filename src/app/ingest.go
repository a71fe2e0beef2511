package app

import (
	"context"
	"fmt"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PageSize is the number of assets requested from a Source per page.
const PageSize = 200

type (
	// Asset is a raw item as reported by a Source, before normalization.
	Asset struct {
		URI              string
		Filename         string
		Extension        string
		Type             string
		PlayableDuration float64

		// Seconds or milliseconds depending on the platform.
		Timestamp    *float64
		CreationTime *float64

		// ISO encoded.
		SelectedDate string
		CreatedAt    string
	}

	Page struct {
		Assets      []Asset
		EndCursor   string
		HasNextPage bool
	}

	// Source pages through raw assets. after is the previous page's EndCursor,
	// empty for the first page.
	Source interface {
		FetchPage(ctx context.Context, after string, first int) (Page, error)
	}

	// MetadataExtractor reads opaque metadata such as EXIF for an asset.
	MetadataExtractor interface {
		Extract(ctx context.Context, uri string) (map[string]any, error)
	}

	// FaceDetector finds faces on an asset. Returned tags need not carry a
	// MediaID.
	FaceDetector interface {
		Detect(ctx context.Context, uri string) ([]FaceTag, error)
	}

	MediaSaver interface {
		UpsertMedia(ctx context.Context, record MediaRecord) error
	}

	// ProgressFunc receives the number of stored assets and the number of
	// assets attempted so far.
	ProgressFunc func(done, total int)

	Pipeline struct {
		saver     MediaSaver
		extractor MetadataExtractor
		detector  FaceDetector
		log       *zap.SugaredLogger
		now       func() time.Time
	}

	PipelineOption func(*Pipeline)
)

func WithMetadataExtractor(e MetadataExtractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = e }
}

func WithFaceDetector(d FaceDetector) PipelineOption {
	return func(p *Pipeline) { p.detector = d }
}

func WithLogger(l *zap.SugaredLogger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(saver MediaSaver, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		saver: saver,
		log:   zap.NewNop().Sugar(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest pulls every page of src, normalizes and stores each asset and
// returns the stored records. Failing assets are logged and skipped. A page
// fetch error stops the run; the records stored so far are returned with it.
func (p *Pipeline) Ingest(ctx context.Context, src Source, onProgress ProgressFunc) ([]MediaRecord, error) {
	collected := make([]MediaRecord, 0)
	total := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return collected, err
		}
		page, err := src.FetchPage(ctx, cursor, PageSize)
		if err != nil {
			return collected, fmt.Errorf("fetch page after %q: %w", cursor, err)
		}
		for _, asset := range page.Assets {
			total++
			record, err := p.process(ctx, asset)
			if err != nil {
				p.log.Warnw("failed to process asset", "uri", asset.URI, "error", err)
			} else {
				collected = append(collected, record)
			}
			if onProgress != nil {
				onProgress(len(collected), total)
			}
		}
		if !page.HasNextPage {
			return collected, nil
		}
		cursor = page.EndCursor
	}
}

func (p *Pipeline) process(ctx context.Context, asset Asset) (record MediaRecord, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.log.Debugf("stack: %s", debug.Stack())
			err = fmt.Errorf("recovered from: %v", recovered)
		}
	}()
	record, err = p.BuildRecord(ctx, asset)
	if err != nil {
		return MediaRecord{}, err
	}
	if err := p.saver.UpsertMedia(ctx, record); err != nil {
		return MediaRecord{}, fmt.Errorf("persist %s: %w", record.ID, err)
	}
	return record, nil
}

// BuildRecord normalizes a raw asset and runs the optional enrichments.
// Enrichment errors leave the corresponding field empty.
func (p *Pipeline) BuildRecord(ctx context.Context, asset Asset) (MediaRecord, error) {
	if asset.URI == "" && asset.Filename == "" {
		return MediaRecord{}, ErrMalformedAsset
	}
	id := asset.Filename
	if id == "" {
		id = asset.URI
	}
	record := MediaRecord{
		ID:        id,
		URI:       asset.URI,
		Filename:  assetFilename(asset),
		MediaType: assetMediaType(asset),
		CreationDate: ResolveCreationDate(TimestampCandidates{
			Selected:  asset.SelectedDate,
			Numeric:   []*float64{asset.Timestamp, asset.CreationTime},
			CreatedAt: asset.CreatedAt,
		}, p.now()),
		Faces: []FaceTag{},
	}

	if p.extractor != nil && asset.URI != "" {
		exif, err := p.extractor.Extract(ctx, asset.URI)
		if err != nil {
			p.log.Debugw("exif read failed", "uri", asset.URI, "error", err)
		} else if len(exif) > 0 {
			record.Exif = exif
		}
	}

	if p.detector != nil && asset.URI != "" && record.MediaType == MediaImage {
		faces, err := p.detector.Detect(ctx, asset.URI)
		if err != nil {
			p.log.Warnw("face detection failed", "uri", asset.URI, "error", err)
		}
		for _, f := range faces {
			f.MediaID = record.ID
			record.Faces = append(record.Faces, f)
		}
	}
	return record, nil
}

func assetFilename(asset Asset) string {
	if asset.Filename != "" {
		return asset.Filename
	}
	if base := path.Base(strings.TrimRight(asset.URI, "/")); base != "" && base != "." && base != "/" {
		return base
	}
	return "unknown"
}

func assetMediaType(asset Asset) MediaType {
	if asset.PlayableDuration > 0 {
		return MediaVideo
	}
	hint := asset.Extension
	if hint == "" {
		hint = asset.Type
	}
	if strings.Contains(strings.ToLower(hint), "video") {
		return MediaVideo
	}
	return MediaImage
}
