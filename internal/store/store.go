package store

import (
	"fmt"
	"sync"

	"grab-relay/internal/core"
)

// Store keeps per-client upstream credentials for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	configs map[string]core.ClientConfig
}

func New() *Store {
	return &Store{configs: make(map[string]core.ClientConfig)}
}

// Set inserts or replaces the config for clientID. Last write wins.
func (s *Store) Set(clientID string, cfg core.ClientConfig) error {
	if clientID == "" {
		return fmt.Errorf("%w: clientId is required", core.ErrValidation)
	}
	s.mu.Lock()
	s.configs[clientID] = cfg
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the config registered for clientID.
func (s *Store) Get(clientID string) (core.ClientConfig, error) {
	if clientID == "" {
		return core.ClientConfig{}, core.ErrNotFound
	}
	s.mu.RLock()
	cfg, ok := s.configs[clientID]
	s.mu.RUnlock()
	if !ok {
		return core.ClientConfig{}, core.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.configs)
}
