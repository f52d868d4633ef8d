package driving

import (
	"context"

	"user-record-service/internal/core/domain"
)

// UserService defines the record-level operations exposed to the HTTP layer.
type UserService interface {
	CreateUser(ctx context.Context, username, name, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	DeleteUserByID(ctx context.Context, id string) error
}

// AttributeQueryService defines read-only lookups over raw attribute entries.
type AttributeQueryService interface {
	FindAttributes(ctx context.Context, query domain.AttributeQuery) ([]domain.Attribute, error)
}
