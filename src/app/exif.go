package app

import (
	"context"
	"fmt"
	"os"

	"github.com/cozy/goexif2/exif"
	"github.com/cozy/goexif2/tiff"
)

// ExifExtractor reads EXIF tags from local files.
type ExifExtractor struct{}

type exifWalkerFunc func(exif.FieldName, *tiff.Tag) error

func (w exifWalkerFunc) Walk(name exif.FieldName, tag *tiff.Tag) error {
	return w(name, tag)
}

func (ExifExtractor) Extract(_ context.Context, uri string) (map[string]any, error) {
	file, err := os.Open(LocalPath(uri))
	if err != nil {
		return nil, fmt.Errorf("open for exif: %w", err)
	}
	defer file.Close()

	ex, err := exif.Decode(file)
	if err != nil && (ex == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("decoding exif: %w", err)
	}

	meta := make(map[string]any)
	err = ex.Walk(exifWalkerFunc(func(name exif.FieldName, tag *tiff.Tag) error {
		if v, ok := tagValue(tag); ok {
			meta[string(name)] = v
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("walking exif: %w", err)
	}
	if len(meta) == 0 {
		return nil, ErrNoMetadata
	}
	return meta, nil
}

// tagValue returns the first value of tag; multi-valued tags keep all values.
func tagValue(tag *tiff.Tag) (any, bool) {
	count := int(tag.Count)
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		return s, err == nil
	case tiff.IntVal:
		vals := make([]any, 0, count)
		for i := 0; i < count; i++ {
			if v, err := tag.Int(i); err == nil {
				vals = append(vals, v)
			}
		}
		return single(vals)
	case tiff.FloatVal:
		vals := make([]any, 0, count)
		for i := 0; i < count; i++ {
			if v, err := tag.Float(i); err == nil {
				vals = append(vals, v)
			}
		}
		return single(vals)
	case tiff.RatVal:
		vals := make([]any, 0, count)
		for i := 0; i < count; i++ {
			num, den, err := tag.Rat2(i)
			if err == nil && den != 0 {
				vals = append(vals, float64(num)/float64(den))
			}
		}
		return single(vals)
	}
	return nil, false
}

func single(vals []any) (any, bool) {
	switch len(vals) {
	case 0:
		return nil, false
	case 1:
		return vals[0], true
	}
	return vals, true
}
