package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const sessionFileName = "session.json"

// FileStore implements Store using JSON file storage.
type FileStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFileStore creates a new file-based session store.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) filePath() string {
	return filepath.Join(s.dataDir, sessionFileName)
}

func (s *FileStore) Get(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) SetTokens(ctx context.Context, access, refresh, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(&Record{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       userID,
	})
}

func (s *FileStore) SetUser(ctx context.Context, user []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load()
	if err != nil {
		return err
	}
	if record == nil {
		record = &Record{}
	}
	record.User = append([]byte(nil), user...)
	return s.save(record)
}

func (s *FileStore) SetRole(ctx context.Context, roleNameEnc, permissionsEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load()
	if err != nil {
		return err
	}
	if record == nil {
		record = &Record{}
	}
	record.RoleNameEnc = roleNameEnc
	record.PermissionsEnc = permissionsEnc
	return s.save(record)
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

func (s *FileStore) load() (*Record, error) {
	data, err := os.ReadFile(s.filePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn("Failed to parse session record", "err", err)
		return nil, nil
	}
	return &record, nil
}

func (s *FileStore) save(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	tempFile := s.filePath() + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath()); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
