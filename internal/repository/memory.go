package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"order-agent/internal/domain"
)

// MemoryStore is an in-process Store used by tests and local development. It
// deep-copies through JSON so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]byte
	profiles      map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]byte),
		profiles:      make(map[string][]byte),
	}
}

func (s *MemoryStore) LoadConversation(_ context.Context, tenantID, channel string) (*domain.Conversation, error) {
	s.mu.RLock()
	raw, ok := s.conversations[tenantID+"#"+channel]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var conv domain.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("repository: memory: unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *MemoryStore) SaveConversation(_ context.Context, conv *domain.Conversation) error {
	if conv == nil {
		return errors.New("repository: memory: conversation must not be nil")
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("repository: memory: marshal conversation: %w", err)
	}
	s.mu.Lock()
	s.conversations[conv.Key()] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadProfile(_ context.Context, tenantID, phone string) (*domain.CustomerProfile, error) {
	s.mu.RLock()
	raw, ok := s.profiles[tenantID+"#"+phone]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var profile domain.CustomerProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("repository: memory: unmarshal profile: %w", err)
	}
	return &profile, nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, profile *domain.CustomerProfile) error {
	if profile == nil {
		return errors.New("repository: memory: profile must not be nil")
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("repository: memory: marshal profile: %w", err)
	}
	s.mu.Lock()
	s.profiles[profile.TenantID+"#"+profile.Phone] = raw
	s.mu.Unlock()
	return nil
}
