package addressing

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dispatchworks/alarmhub/internal/logger"
)

// bookFile mirrors the YAML layout of the address book.
type bookFile struct {
	Entries []entryFile `yaml:"entries"`
}

type entryFile struct {
	FirstName string     `yaml:"first_name"`
	LastName  string     `yaml:"last_name"`
	Items     []itemFile `yaml:"items"`
}

type itemFile struct {
	Type string `yaml:"type"`
	// Enabled defaults to true when omitted.
	Enabled *bool     `yaml:"enabled"`
	Data    yaml.Node `yaml:"data"`
}

// DecodeBook parses a YAML address book. Items whose type has no provider or
// whose payload fails to parse are dropped with a warning; a single bad item
// never blocks the rest of the book.
func DecodeBook(ctx context.Context, contents []byte, providers map[string]Provider) (*Book, error) {
	var file bookFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("unmarshal address book: %w", err)
	}

	book := &Book{Entries: make([]Entry, 0, len(file.Entries))}

	for _, entryF := range file.Entries {
		entry := Entry{
			FirstName: entryF.FirstName,
			LastName:  entryF.LastName,
		}

		for _, itemF := range entryF.Items {
			provider, ok := providers[itemF.Type]
			if !ok {
				logger.WarnKV(ctx, "Unknown address type, item skipped",
					"type", itemF.Type, "entry", entry.DisplayName())

				continue
			}

			data, err := provider.Parse(&itemF.Data)
			if err != nil {
				logger.WarnKV(ctx, "Malformed address item dropped",
					"type", itemF.Type, "entry", entry.DisplayName(), "error", err)

				continue
			}

			enabled := true
			if itemF.Enabled != nil {
				enabled = *itemF.Enabled
			}

			entry.Data = append(entry.Data, EntryDataItem{
				Identifier: itemF.Type,
				IsEnabled:  enabled,
				Data:       data,
			})
		}

		book.Entries = append(book.Entries, entry)
	}

	return book, nil
}

// EncodeBook serializes a book back into its YAML layout.
// Items whose payload cannot be serialized are dropped with a warning,
// mirroring the decode policy.
func EncodeBook(ctx context.Context, book *Book, providers map[string]Provider) ([]byte, error) {
	file := bookFile{Entries: make([]entryFile, 0, len(book.Entries))}

	for _, entry := range book.Entries {
		entryF := entryFile{
			FirstName: entry.FirstName,
			LastName:  entry.LastName,
		}

		for _, item := range entry.Data {
			provider, ok := providers[item.Identifier]
			if !ok {
				logger.WarnKV(ctx, "Unknown address type, item not serialized",
					"type", item.Identifier, "entry", entry.DisplayName())

				continue
			}

			node, err := provider.Serialize(item.Data)
			if err != nil {
				logger.WarnKV(ctx, "Address item not serialized",
					"type", item.Identifier, "entry", entry.DisplayName(), "error", err)

				continue
			}

			enabled := item.IsEnabled
			entryF.Items = append(entryF.Items, itemFile{
				Type:    item.Identifier,
				Enabled: &enabled,
				Data:    *node,
			})
		}

		file.Entries = append(file.Entries, entryF)
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return nil, fmt.Errorf("marshal address book: %w", err)
	}

	return data, nil
}
