package store

import (
	"context"
	"errors"

	"todo/internal/models"
)

var (
	// ErrIOFailure marks a read or write the underlying storage could not complete.
	ErrIOFailure = errors.New("storage i/o failure")

	// ErrNotFound is returned by GetItem when no row has the requested id.
	ErrNotFound = errors.New("item not found")

	// ErrClosed is delivered to live feeds when the store handle is closed.
	ErrClosed = errors.New("store closed")
)

// Update is one emission of the all-items feed.
// A non-nil Err is fatal for the feed and is always the last value sent.
type Update struct {
	Items []models.Item
	Err   error
}

// Store defines the interface for item persistence.
type Store interface {
	// Persist inserts the item when it has no ID and assigns one,
	// otherwise it fully replaces the row with the item's ID.
	Persist(ctx context.Context, item *models.Item) error
	// Remove deletes the row with the item's ID. Missing rows are not an error.
	Remove(ctx context.Context, item models.Item) error
	// ObserveAll emits the current snapshot, then a new snapshot after every
	// committed change, until ctx is cancelled or the feed fails.
	ObserveAll(ctx context.Context) <-chan Update

	ListItems(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)

	// Lifecycle
	Close() error
}
