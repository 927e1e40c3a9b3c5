package store

import (
	"context"
	"errors"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// Store defines persistence operations for alarm operations.
// Exists plus Store form the deduplication contract: the engine checks the
// operation number before storing, and implementations additionally enforce
// number uniqueness themselves.
type Store interface {
	// Exists reports whether an operation with the number is already stored.
	Exists(ctx context.Context, operationNumber string) (bool, error)
	// Store persists the operation and returns it with the assigned ID.
	Store(ctx context.Context, op *operation.Operation) (*operation.Operation, error)
	// Get loads an operation by its store-assigned ID.
	Get(ctx context.Context, id int64) (*operation.Operation, error)
	// Acknowledge marks the operation as handled by an operator.
	Acknowledge(ctx context.Context, id int64) error
	// List returns the most recent operations, newest first.
	List(ctx context.Context, limit int) ([]*operation.Operation, error)
	// Close releases underlying resources.
	Close() error
}

var (
	// ErrNotFound is returned when no operation exists under the given ID.
	ErrNotFound = errors.New("operation not found")
	// ErrDuplicateNumber is returned when storing an operation whose number
	// is already present.
	ErrDuplicateNumber = errors.New("operation number already stored")
)
