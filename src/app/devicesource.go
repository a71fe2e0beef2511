package app

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/maruel/natural"
)

const fileScheme = "file://"

// DirectorySource serves the photos and videos under Root as a camera roll.
// The cursor is the offset of the next asset in natural filename order.
type DirectorySource struct {
	Root string
}

func NewDirectorySource(root string) *DirectorySource {
	return &DirectorySource{Root: root}
}

func (d *DirectorySource) FetchPage(ctx context.Context, after string, first int) (Page, error) {
	offset := 0
	if after != "" {
		n, err := strconv.Atoi(after)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid cursor %q", after)
		}
		offset = n
	}
	paths, err := d.list(ctx)
	if err != nil {
		return Page{}, err
	}
	if offset > len(paths) {
		offset = len(paths)
	}
	end := offset + first
	if first <= 0 || end > len(paths) {
		end = len(paths)
	}

	page := Page{Assets: make([]Asset, 0, end-offset)}
	for _, p := range paths[offset:end] {
		asset, err := assetFromFile(p)
		if err != nil {
			// surfaced per asset by the pipeline as a malformed asset
			page.Assets = append(page.Assets, Asset{})
			continue
		}
		page.Assets = append(page.Assets, asset)
	}
	page.HasNextPage = end < len(paths)
	if page.HasNextPage {
		page.EndCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (d *DirectorySource) list(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			if p != d.Root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isMediaFile(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", d.Root, err)
	}
	sort.Sort(natural.StringSlice(paths))
	return paths, nil
}

func assetFromFile(p string) (Asset, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Asset{}, err
	}
	seconds := float64(info.ModTime().Unix())
	return Asset{
		URI:       fileScheme + filepath.ToSlash(p),
		Filename:  filepath.Base(p),
		Type:      mediaMIME(p),
		Timestamp: &seconds,
	}, nil
}

func isMediaFile(p string) bool {
	t := mediaMIME(p)
	return strings.HasPrefix(t, "image/") || strings.HasPrefix(t, "video/")
}

func mediaMIME(p string) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); byExt != "" {
		return byExt
	}
	m, err := mimetype.DetectFile(p)
	if err != nil {
		return ""
	}
	return m.String()
}

// LocalPath strips the file scheme from a device URI.
func LocalPath(uri string) string {
	return filepath.FromSlash(strings.TrimPrefix(uri, fileScheme))
}
