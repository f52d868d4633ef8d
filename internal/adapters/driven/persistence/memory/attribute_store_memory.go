// Package memory is a map based AttributeStore.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"user-record-service/internal/core/domain"
	"user-record-service/internal/core/ports/driven"
)

// AttributeStoreImpl implements driven.AttributeStore on a flat Go map.
// A single RWMutex guards the whole map, so every call works on a
// consistent snapshot.
type AttributeStoreImpl struct {
	mu     sync.RWMutex
	values map[domain.AttributeKey]string
	groups map[string]int // attribute count per group
}

// NewAttributeStore creates an empty AttributeStoreImpl.
func NewAttributeStore() driven.AttributeStore {
	return &AttributeStoreImpl{
		values: make(map[domain.AttributeKey]string),
		groups: make(map[string]int),
	}
}

func (s *AttributeStoreImpl) Put(ctx context.Context, name, value, groupID string) (domain.Attribute, error) {
	if err := domain.ValidateAttributeNames(name); err != nil {
		return domain.Attribute{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groupID, err := s.resolveGroup(groupID)
	if err != nil {
		return domain.Attribute{}, err
	}
	s.set(groupID, name, value)

	return domain.Attribute{GroupID: groupID, Name: name, Value: value}, nil
}

func (s *AttributeStoreImpl) PutGroup(ctx context.Context, groupID string, attrs map[string]string) (string, error) {
	if err := domain.ValidateAttributeBatch(attrs); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groupID, err := s.resolveGroup(groupID)
	if err != nil {
		return "", err
	}
	for name, value := range attrs {
		s.set(groupID, name, value)
	}
	return groupID, nil
}

func (s *AttributeStoreImpl) GetByGroupID(ctx context.Context, groupID string) ([]domain.Attribute, error) {
	return s.filter(func(k domain.AttributeKey, _ string) bool {
		return k.GroupID == groupID
	}), nil
}

func (s *AttributeStoreImpl) GetByAttributeName(ctx context.Context, name string) ([]domain.Attribute, error) {
	return s.filter(func(k domain.AttributeKey, _ string) bool {
		return k.Name == name
	}), nil
}

func (s *AttributeStoreImpl) GetByValue(ctx context.Context, value string) ([]domain.Attribute, error) {
	return s.filter(func(_ domain.AttributeKey, v string) bool {
		return v == value
	}), nil
}

func (s *AttributeStoreImpl) GetByAttributeNameAndValue(ctx context.Context, name, value string) ([]domain.Attribute, error) {
	return s.filter(func(k domain.AttributeKey, v string) bool {
		return k.Name == name && v == value
	}), nil
}

func (s *AttributeStoreImpl) DeleteByGroupID(ctx context.Context, groupID string) error {
	if groupID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groups[groupID] == 0 {
		return nil
	}
	for k := range s.values {
		if k.GroupID == groupID {
			delete(s.values, k)
		}
	}
	delete(s.groups, groupID)
	return nil
}

// resolveGroup returns a fresh group id for an empty groupID or checks that
// an explicit one exists. Callers must hold the write lock.
func (s *AttributeStoreImpl) resolveGroup(groupID string) (string, error) {
	if groupID == "" {
		for {
			id := uuid.NewString()
			if s.groups[id] == 0 {
				return id, nil
			}
		}
	}
	if s.groups[groupID] == 0 {
		return "", fmt.Errorf("group %q: %w", groupID, domain.ErrNoGroupFound)
	}
	return groupID, nil
}

func (s *AttributeStoreImpl) set(groupID, name, value string) {
	key := domain.AttributeKey{GroupID: groupID, Name: name}
	if _, exists := s.values[key]; !exists {
		s.groups[groupID]++
	}
	s.values[key] = value
}

func (s *AttributeStoreImpl) filter(match func(domain.AttributeKey, string) bool) []domain.Attribute {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Attribute, 0)
	for k, v := range s.values {
		if match(k, v) {
			result = append(result, domain.Attribute{GroupID: k.GroupID, Name: k.Name, Value: v})
		}
	}
	domain.SortAttributes(result)
	return result
}
