package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store using JSON file storage. A missing or corrupt
// file is treated as an absent record, never as a hard failure.
type FileStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFileStore creates a new file-based pending-verification store.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) filePath() string {
	return filepath.Join(s.dataDir, StoreKey+".json")
}

func (s *FileStore) Save(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pending verification record: %w", err)
	}

	tempFile := s.filePath() + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath()); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		slog.Warn("Failed to read pending verification record", "err", err)
		return nil, nil
	}
	if len(data) == 0 {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn("Failed to parse pending verification record", "err", err)
		return nil, nil
	}
	return &record, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filePath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
