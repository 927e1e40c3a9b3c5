package addressing

// EntryDataItem is one typed contact payload of an address book entry.
type EntryDataItem struct {
	// Identifier is the address type tag naming the provider that owns
	// the payload (e.g. "mail", "phone").
	Identifier string
	// IsEnabled toggles the item without removing it from the book.
	// Disabled items are invisible to every read path.
	IsEnabled bool
	// Data is the provider-specific payload.
	Data any
}

// Entry is one recipient in the address book.
type Entry struct {
	FirstName string
	LastName  string
	// Data holds the entry's contact payloads in book order.
	Data []EntryDataItem
}

// DisplayName renders the entry name for logs and messages.
func (e Entry) DisplayName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	default:
		return e.FirstName + " " + e.LastName
	}
}

// DataItems returns the enabled payloads of the given address type,
// asserted to T. Items of other types or payload types are skipped.
func DataItems[T any](e Entry, identifier string) []T {
	var items []T

	for _, item := range e.Data {
		if !item.IsEnabled || item.Identifier != identifier {
			continue
		}

		if data, ok := item.Data.(T); ok {
			items = append(items, data)
		}
	}

	return items
}

// Book is an immutable address book snapshot.
type Book struct {
	Entries []Entry
}
