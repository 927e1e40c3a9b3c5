package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// MemoryStore is an in-memory Store used in tests and as a stand-in when no
// database is configured. Contents are lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*operation.Operation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byID:   make(map[int64]*operation.Operation),
	}
}

// Exists reports whether an operation with the number is already stored.
func (s *MemoryStore) Exists(_ context.Context, operationNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findByNumber(operationNumber) != nil, nil
}

// Store persists a copy of the operation and returns it with the assigned ID.
func (s *MemoryStore) Store(_ context.Context, op *operation.Operation) (*operation.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.Number != "" && s.findByNumber(op.Number) != nil {
		return nil, ErrDuplicateNumber
	}

	stored := op.Clone()
	stored.ID = s.nextID
	s.nextID++
	s.byID[stored.ID] = stored

	return stored.Clone(), nil
}

// Get loads an operation by its ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (*operation.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	return op.Clone(), nil
}

// Acknowledge marks the operation as handled.
func (s *MemoryStore) Acknowledge(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}

	op.Acknowledged = true

	return nil
}

// List returns the most recent operations, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*operation.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*operation.Operation, 0, len(s.byID))
	for _, op := range s.byID {
		all = append(all, op.Clone())
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// findByNumber must be called with the mutex held.
func (s *MemoryStore) findByNumber(number string) *operation.Operation {
	if number == "" {
		return nil
	}

	for _, op := range s.byID {
		if strings.EqualFold(op.Number, number) {
			return op
		}
	}

	return nil
}
