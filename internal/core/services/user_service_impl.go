package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"user-record-service/internal/core/domain"
	"user-record-service/internal/core/ports/driven"
	"user-record-service/internal/core/ports/driving"
)

var (
	_ driving.UserService           = (*UserServiceImpl)(nil)
	_ driving.AttributeQueryService = (*UserServiceImpl)(nil)
)

// UserServiceImpl implements driving.UserService and
// driving.AttributeQueryService on top of an attribute store.
type UserServiceImpl struct {
	store driven.AttributeStore
	sugar *zap.SugaredLogger

	// writeMu spans the username check and the following write, so two
	// concurrent requests cannot claim the same username.
	writeMu sync.Mutex
}

// NewUserServiceImpl creates a new UserServiceImpl.
func NewUserServiceImpl(store driven.AttributeStore, logger *zap.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		store: store,
		sugar: logger.Sugar(),
	}
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, username, name, email string) (*domain.User, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	owners, err := s.usernameOwners(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(owners) > 0 {
		s.sugar.Debugw("create rejected", "username", username, "owner", owners[0])
		return nil, fmt.Errorf("username %q already exists: %w", username, domain.ErrDuplicateRecord)
	}

	user := &domain.User{Username: username, Name: name, Email: email}
	id, err := s.store.PutGroup(ctx, "", user.Attributes())
	if err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	user.ID = id

	s.sugar.Infow("user created", "id", id, "username", username)
	return user, nil
}

func (s *UserServiceImpl) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	attrs, err := s.store.GetByGroupID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read user %q: %w", id, err)
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("no user with id %q: %w", id, domain.ErrNotFound)
	}
	return domain.UserFromAttributes(attrs), nil
}

// GetUserByUsername returns the user holding username. If several groups hold
// it, the one with the smallest group id is returned.
func (s *UserServiceImpl) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	owners, err := s.usernameOwners(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("username %q does not exist: %w", username, domain.ErrNotFound)
	}
	return s.GetUserByID(ctx, owners[0])
}

// UpdateUser writes the attributes of user that differ from the stored record
// in one batch and returns the record as stored afterwards.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	previous, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	owners, err := s.usernameOwners(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	for _, owner := range owners {
		if owner != user.ID {
			return nil, fmt.Errorf("cannot update user %q, username %q already exists: %w",
				user.ID, user.Username, domain.ErrDuplicateRecord)
		}
	}

	before := previous.Attributes()
	changed := make(map[string]string)
	for name, value := range user.Attributes() {
		if before[name] != value {
			changed[name] = value
		}
	}

	if len(changed) > 0 {
		if _, err := s.store.PutGroup(ctx, user.ID, changed); err != nil {
			return nil, fmt.Errorf("failed to update user %q: %w", user.ID, err)
		}
		s.sugar.Infow("user updated", "id", user.ID, "attributes", len(changed))
	}

	return s.GetUserByID(ctx, user.ID)
}

func (s *UserServiceImpl) DeleteUserByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.store.DeleteByGroupID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %q: %w", id, err)
	}
	s.sugar.Infow("user deleted", "id", id)
	return nil
}

// FindAttributes returns raw attribute entries matching the query.
func (s *UserServiceImpl) FindAttributes(ctx context.Context, query domain.AttributeQuery) ([]domain.Attribute, error) {
	switch {
	case query.Name != nil && query.Value != nil:
		return s.store.GetByAttributeNameAndValue(ctx, *query.Name, *query.Value)
	case query.Name != nil:
		return s.store.GetByAttributeName(ctx, *query.Name)
	case query.Value != nil:
		return s.store.GetByValue(ctx, *query.Value)
	default:
		return nil, fmt.Errorf("attribute name or value is required: %w", domain.ErrInvalidInput)
	}
}

// usernameOwners returns the group ids holding the given username, in
// ascending order.
func (s *UserServiceImpl) usernameOwners(ctx context.Context, username string) ([]string, error) {
	matches, err := s.store.GetByAttributeNameAndValue(ctx, domain.UsernameKey, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up username %q: %w", username, err)
	}
	owners := make([]string, 0, len(matches))
	for _, m := range matches {
		owners = append(owners, m.GroupID)
	}
	sort.Strings(owners)
	return owners, nil
}
