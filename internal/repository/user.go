package repository

import (
	"context"

	"userapi/internal/model"
)

// EntityUser is the entity name Count understands for user records.
const EntityUser = "user"

// Counter counts records of a named entity.
type Counter interface {
	// Count returns the number of records of entity. Failures are *DataAccessError.
	Count(ctx context.Context, entity string) (int64, error)
}

// UserRepository defines data access for users using SQL queries only.
// Persistence only; validation lives in the service.
type UserRepository interface {
	Counter

	// Create inserts a new user record and returns the stored row.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByID returns a user by ID. It returns sql.ErrNoRows if missing.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// List returns one page of users, newest first.
	List(ctx context.Context, pq PageQuery) ([]model.User, error)

	// UpdateAvatar sets the avatar object key of a user. It returns sql.ErrNoRows if missing.
	UpdateAvatar(ctx context.Context, id, path string) error

	// Delete removes a user by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}
