package addressing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/logger"
)

// Service provides filtered access to the address book.
//
// The book is an immutable snapshot swapped atomically on reload, so a
// fan-out that started before a reload completes against the book version it
// started with and never observes a half-rebuilt state.
type Service struct {
	// path is the watched address book file.
	path string
	// providers maps address type tags to their payload codecs.
	providers map[string]Provider
	// filters is the configured chain, fixed for the process lifetime.
	filters []NamedFilter

	book atomic.Pointer[Book]
}

// Recipient pairs an accepted entry with one of its typed payloads.
type Recipient[T any] struct {
	Entry Entry
	Data  T
}

// NewService creates an addressing service over the configured book path.
// The book starts empty; call Reload (or Watch) to populate it.
func NewService(cfg config.Addressing, providers []Provider, filters []NamedFilter) *Service {
	providerMap := make(map[string]Provider, len(providers))
	for _, p := range providers {
		providerMap[p.AddressType()] = p
	}

	s := &Service{
		path:      filepath.Clean(cfg.BookPath),
		providers: providerMap,
		filters:   filters,
	}
	s.book.Store(&Book{})

	return s
}

// Reload reads the book file and atomically swaps the active snapshot.
// On failure the previous snapshot stays active.
func (s *Service) Reload(ctx context.Context) error {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read address book: %w", err)
	}

	book, err := DecodeBook(ctx, contents, s.providers)
	if err != nil {
		return err
	}

	s.book.Store(book)

	logger.InfoKV(ctx, "Address book loaded", "path", s.path, "entries", len(book.Entries))

	return nil
}

// Snapshot returns the currently active book.
// The returned book must be treated as read-only.
func (s *Service) Snapshot() *Book {
	return s.book.Load()
}

// GetAllEntries returns every entry of the active book, unfiltered.
func (s *Service) GetAllEntries() []Entry {
	return s.Snapshot().Entries
}

// accept reports whether every configured filter accepts the entry.
func (s *Service) accept(op *operation.Operation, entry Entry) bool {
	for _, nf := range s.filters {
		if !nf.Filter.Accept(op, entry) {
			return false
		}
	}

	return true
}

// CustomObjects returns all enabled payloads of the given address type
// across the whole book, without filtering.
func CustomObjects[T any](s *Service, identifier string) []Recipient[T] {
	return CustomObjectsFiltered[T](s, identifier, nil)
}

// CustomObjectsFiltered returns the enabled payloads of the given address
// type from entries accepted by the filter chain for the operation. A nil
// operation disables filtering.
func CustomObjectsFiltered[T any](s *Service, identifier string, op *operation.Operation) []Recipient[T] {
	var recipients []Recipient[T]

	// One snapshot for the whole fan-out.
	for _, entry := range s.Snapshot().Entries {
		if op != nil && !s.accept(op, entry) {
			continue
		}

		for _, data := range DataItems[T](entry, identifier) {
			recipients = append(recipients, Recipient[T]{Entry: entry, Data: data})
		}
	}

	return recipients
}
