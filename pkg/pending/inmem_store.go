package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// InMemStore implements Store using process memory. It still round-trips the
// record through JSON so parse failures behave the same as in the file store.
type InMemStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewInMemStore creates a new in-memory pending-verification store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		data: make(map[string][]byte),
	}
}

func (s *InMemStore) Save(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal pending verification record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[StoreKey] = data
	return nil
}

func (s *InMemStore) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.data[StoreKey]
	if !exists {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt record is treated as absent
		return nil, nil
	}
	return &record, nil
}

func (s *InMemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, StoreKey)
	return nil
}
