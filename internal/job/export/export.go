// Package export writes every stored operation as a JSON document into an
// export directory, the integration point for external evaluation tools.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Alias is the registry alias of this job.
const Alias = "export"

// Job exports stored operations as JSON files.
type Job struct {
	cfg config.Export
}

// New creates an export job.
func New(cfg config.Export) *Job {
	return &Job{cfg: cfg}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.Export) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "writes stored operations as JSON files into an export directory",
		New: func() (job.Job, error) {
			return New(cfg), nil
		},
	})
}

// IsAsync implements job.Job.
func (j *Job) IsAsync() bool { return false }

// Phases implements job.Job.
func (j *Job) Phases() []job.Phase {
	return []job.Phase{job.PhaseAfterOperationStored}
}

// Initialize creates the export directory.
func (j *Job) Initialize(_ context.Context) error {
	if j.cfg.Directory == "" {
		return errors.New("export directory is not configured")
	}

	if err := os.MkdirAll(j.cfg.Directory, 0o750); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	return nil
}

// Execute writes one file per operation, named by its GUID so redeliveries
// of distinct operations can never collide.
func (j *Job) Execute(ctx context.Context, _ *job.Context, op *operation.Operation) error {
	contents, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	path := filepath.Join(j.cfg.Directory, op.GUID+".json")
	if err = os.WriteFile(path, contents, 0o600); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	logger.InfoKV(ctx, "Operation exported", "path", path)

	return nil
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	return nil
}
