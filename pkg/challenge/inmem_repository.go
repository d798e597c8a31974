package challenge

import (
	"context"
	"strings"
	"sync"

	"github.com/fleetdesk/loginverify/pkg/geo"
)

// InMemRepository is a thread-safe in-memory Repository.
type InMemRepository struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	sessions   map[string]int
	locations  map[string]geo.Coordinates
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		challenges: make(map[string]Challenge),
		sessions:   make(map[string]int),
		locations:  make(map[string]geo.Coordinates),
	}
}

func (r *InMemRepository) GetByEmail(ctx context.Context, email string) (*Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, exists := r.challenges[normalizeEmail(email)]
	if !exists {
		return nil, nil
	}
	return &challenge, nil
}

func (r *InMemRepository) Save(ctx context.Context, challenge Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.challenges[normalizeEmail(challenge.Email)] = challenge
	return nil
}

func (r *InMemRepository) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.challenges, normalizeEmail(email))
	return nil
}

func (r *InMemRepository) AddSession(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[userID]++
	return r.sessions[userID], nil
}

func (r *InMemRepository) CountSessions(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[userID], nil
}

func (r *InMemRepository) SetLastLocation(ctx context.Context, userID string, coords geo.Coordinates) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.locations[userID] = coords
	return nil
}

func (r *InMemRepository) GetLastLocation(ctx context.Context, userID string) (*geo.Coordinates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	coords, exists := r.locations[userID]
	if !exists {
		return nil, nil
	}
	return &coords, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
