package driven

import (
	"context"

	"user-record-service/internal/core/domain"
)

// AttributeStore defines the interface for grouped attribute persistence.
//
// An empty groupID on Put or PutGroup asks the store to create a new group.
// A non-empty groupID must already carry at least one attribute, otherwise
// domain.ErrNoGroupFound is returned.
//
// Lookups match exactly and return results in no particular order.
type AttributeStore interface {
	Put(ctx context.Context, name, value, groupID string) (domain.Attribute, error)
	PutGroup(ctx context.Context, groupID string, attrs map[string]string) (string, error)
	GetByGroupID(ctx context.Context, groupID string) ([]domain.Attribute, error)
	GetByAttributeName(ctx context.Context, name string) ([]domain.Attribute, error)
	GetByValue(ctx context.Context, value string) ([]domain.Attribute, error)
	GetByAttributeNameAndValue(ctx context.Context, name, value string) ([]domain.Attribute, error)
	DeleteByGroupID(ctx context.Context, groupID string) error
}
