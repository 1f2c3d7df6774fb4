// Package storage defines the persistence interface for the budget server.
package storage

import (
	"context"

	budget "github.com/apetbrz/budget-app-project/internal"
)

// Repository wraps the auth and users tables behind named operations. Both
// tables live in the same database; registration touches both atomically.
type Repository interface {
	// CreateUser inserts the auth row and the user's initial budget JSON in
	// one transaction. A taken username yields budget.ErrAlreadyExists.
	CreateUser(ctx context.Context, row budget.AuthRow, initialJSON string) error
	// FetchAuth returns the auth row for username, or budget.ErrNotFound.
	FetchAuth(ctx context.Context, username string) (*budget.AuthRow, error)
	// SaveBudget stores the serialized budget for a user, shifting the
	// previous snapshot into the history column.
	SaveBudget(ctx context.Context, userID, jsondata string) error
	// LoadBudget returns the stored budget JSON for a user.
	LoadBudget(ctx context.Context, userID string) (string, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	Close() error
}
