package addressing

import (
	"strings"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Filter decides whether an address book entry receives notifications for a
// given operation. All configured filters must accept an entry (AND
// semantics); the chain order is declared in configuration.
type Filter interface {
	Accept(op *operation.Operation, entry Entry) bool
}

// NamedFilter pairs a filter instance with its registry alias for logging.
type NamedFilter struct {
	Alias  string
	Filter Filter
}

// ByLoopFilter accepts entries carrying an enabled loop item that matches
// one of the operation's alarm loops. Entries without enabled loop items are
// rejected: a loop-filtered book only notifies explicitly subscribed people.
type ByLoopFilter struct{}

// Accept implements Filter.
func (ByLoopFilter) Accept(op *operation.Operation, entry Entry) bool {
	for _, loop := range DataItems[Loop](entry, TypeLoop) {
		if op.Loops.Contains(loop.Code) {
			return true
		}
	}

	return false
}

// ByKeywordFilter accepts entries carrying an enabled keyword item matching
// the operation's keyword or emergency keyword, case-insensitively.
type ByKeywordFilter struct{}

// Accept implements Filter.
func (ByKeywordFilter) Accept(op *operation.Operation, entry Entry) bool {
	for _, item := range DataItems[KeywordList](entry, TypeKeyword) {
		for _, keyword := range item.Keywords {
			if strings.EqualFold(keyword, op.Keywords.Keyword) ||
				strings.EqualFold(keyword, op.Keywords.EmergencyKeyword) {
				return true
			}
		}
	}

	return false
}

// RegisterBuiltinFilters adds the built-in filters to the filter registry.
func RegisterBuiltinFilters(r *registry.Registry[Filter]) error {
	registrations := []registry.Registration[Filter]{
		{
			Alias:       "loop",
			Description: "accepts entries subscribed to one of the operation's alarm loops",
			New: func() (Filter, error) {
				return ByLoopFilter{}, nil
			},
		},
		{
			Alias:       "keyword",
			Description: "accepts entries subscribed to the operation's keyword",
			New: func() (Filter, error) {
				return ByKeywordFilter{}, nil
			},
		},
	}

	for _, registration := range registrations {
		if err := r.Register(registration); err != nil {
			return err
		}
	}

	return nil
}
