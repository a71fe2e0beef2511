package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	app "albumserv/src/app"
)

// FilePhotoStore is the backend photo index: one JSON array file with the
// newest upload first.
type FilePhotoStore struct {
	path string
	mu   sync.Mutex
}

func NewFilePhotoStore(path string) *FilePhotoStore {
	return &FilePhotoStore{path: path}
}

// Add puts record in front of the index.
func (s *FilePhotoStore) Add(_ context.Context, record app.PhotoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	records = append([]app.PhotoRecord{record}, records...)
	return s.write(records)
}

func (s *FilePhotoStore) List(_ context.Context) ([]app.PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FilePhotoStore) ensure() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return os.WriteFile(s.path, []byte("[]"), 0o644)
	}
	return err
}

func (s *FilePhotoStore) read() ([]app.PhotoRecord, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read photo index: %w", err)
	}
	records := make([]app.PhotoRecord, 0)
	if len(content) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, fmt.Errorf("decode photo index: %w", err)
	}
	return records, nil
}

func (s *FilePhotoStore) write(records []app.PhotoRecord) error {
	if err := s.ensure(); err != nil {
		return err
	}
	content, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode photo index: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write photo index: %w", err)
	}
	return os.Rename(tmp, s.path)
}
