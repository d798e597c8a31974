package session

import (
	"context"
	"sync"
)

// InMemStore implements Store using process memory.
type InMemStore struct {
	mu     sync.Mutex
	record *Record
}

// NewInMemStore creates a new in-memory session store.
func NewInMemStore() *InMemStore {
	return &InMemStore{}
}

func (s *InMemStore) Get(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return nil, nil
	}
	record := *s.record
	return &record, nil
}

func (s *InMemStore) SetTokens(ctx context.Context, access, refresh, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = &Record{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       userID,
	}
	return nil
}

func (s *InMemStore) SetUser(ctx context.Context, user []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		s.record = &Record{}
	}
	s.record.User = append([]byte(nil), user...)
	return nil
}

func (s *InMemStore) SetRole(ctx context.Context, roleNameEnc, permissionsEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		s.record = &Record{}
	}
	s.record.RoleNameEnc = roleNameEnc
	s.record.PermissionsEnc = permissionsEnc
	return nil
}

func (s *InMemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}
