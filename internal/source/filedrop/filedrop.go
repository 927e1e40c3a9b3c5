// Package filedrop ingests alarms from a drop directory: the final stage of
// a fax/OCR toolchain writes a dispatch text file, the source parses it,
// archives the consumed file and emits the operation.
package filedrop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
	"github.com/dispatchworks/alarmhub/internal/source"
)

// Alias is the registry alias of this source.
const Alias = "filedrop"

// ParamArchivedFile is the job context parameter carrying the path the
// consumed dispatch file was archived to.
const ParamArchivedFile = "archived_file"

// settleDelay gives the writing process time to finish after the file
// appears in the directory.
const settleDelay = 100 * time.Millisecond

// Source watches a drop directory for dispatch text files.
type Source struct {
	directory  string
	archiveDir string
}

// New creates a drop directory source from its configuration.
func New(cfg config.FileDrop) *Source {
	archiveDir := cfg.ArchiveDirectory
	if archiveDir == "" {
		archiveDir = filepath.Join(cfg.Directory, "archive")
	}

	return &Source{
		directory:  filepath.Clean(cfg.Directory),
		archiveDir: filepath.Clean(archiveDir),
	}
}

// Register adds the source to the registry.
func Register(r *registry.Registry[source.Source], cfg config.FileDrop) error {
	return r.Register(registry.Registration[source.Source]{
		Alias:       Alias,
		Description: "watches a drop directory for dispatch text files",
		New: func() (source.Source, error) {
			return New(cfg), nil
		},
	})
}

// Initialize verifies the drop directory and creates the archive directory.
func (s *Source) Initialize(_ context.Context) error {
	info, err := os.Stat(s.directory)
	if err != nil {
		return fmt.Errorf("drop directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("drop directory %s is not a directory", s.directory)
	}

	if err = os.MkdirAll(s.archiveDir, 0o750); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	return nil
}

// Run consumes files already waiting in the directory, then processes new
// arrivals until the context is canceled.
func (s *Source) Run(ctx context.Context, emit source.EmitFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err = watcher.Add(s.directory); err != nil {
		return fmt.Errorf("watch %s: %w", s.directory, err)
	}

	// Files dropped while the process was down are still valid alarms.
	if err = s.scanExisting(ctx, emit); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			s.consume(ctx, event.Name, emit)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warnf(ctx, "Drop directory watcher error: %v", err)
		}
	}
}

// Dispose implements source.Source.
func (s *Source) Dispose() error {
	return nil
}

func (s *Source) scanExisting(ctx context.Context, emit source.EmitFunc) error {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("scan drop directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		s.consume(ctx, filepath.Join(s.directory, entry.Name()), emit)
	}

	return nil
}

// consume parses one dispatch file and emits the operation. The file is
// archived in every case so a malformed file cannot wedge the directory.
func (s *Source) consume(ctx context.Context, path string, emit source.EmitFunc) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	// The create event may fire before the writer is done.
	select {
	case <-ctx.Done():
		return
	case <-time.After(settleDelay):
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf(ctx, "Failed to read dispatch file %s: %v", path, err)

		return
	}

	op, parseErr := ParseOperation(contents)

	archived, err := s.archive(path)
	if err != nil {
		logger.Warnf(ctx, "Failed to archive dispatch file %s: %v", path, err)

		return
	}

	if parseErr != nil {
		logger.Warnf(ctx, "Dropping malformed dispatch file %s (archived to %s): %v", path, archived, parseErr)

		return
	}

	emit(op, map[string]string{ParamArchivedFile: archived})
}

// archive moves a consumed file into the archive directory, prefixing the
// name with a timestamp when it is already taken.
func (s *Source) archive(path string) (string, error) {
	target := filepath.Join(s.archiveDir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		prefix := time.Now().UTC().Format("20060102-150405.000000000")
		target = filepath.Join(s.archiveDir, prefix+"-"+filepath.Base(path))
	}

	if err := os.Rename(path, target); err != nil {
		return "", err
	}

	return target, nil
}
