// Package printer renders stored operations through a text template into a
// spool directory, where the station's print daemon picks them up.
package printer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Alias is the registry alias of this job.
const Alias = "printer"

// defaultTemplate renders the operator-facing alarm sheet.
const defaultTemplate = `ALARM {{.Number}}
Time:     {{.AlarmAt.Format "2006-01-02 15:04:05"}}
Keyword:  {{.Keywords.String}}
Location: {{.Einsatzort.String}}
{{- if .Comment}}
Comment:  {{.Comment}}
{{- end}}
{{- if .Loops}}
Loops:    {{.Loops.String}}
{{- end}}
{{- if .Resources}}
Resources:
{{- range .Resources}}
  - {{.}}
{{- end}}
{{- end}}
`

// Job renders alarm sheets into the spool directory.
type Job struct {
	cfg      config.Printer
	template *template.Template
}

// New creates a printer job.
func New(cfg config.Printer) *Job {
	return &Job{cfg: cfg}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.Printer) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "renders alarm sheets into a print spool directory",
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

// Initialize parses the template and creates the spool directory.
func (j *Job) Initialize(_ context.Context) error {
	if j.cfg.SpoolDirectory == "" {
		return errors.New("spool directory is not configured")
	}

	text := j.cfg.Template
	if text == "" {
		text = defaultTemplate
	}

	parsed, err := template.New("alarm-sheet").Parse(text)
	if err != nil {
		return fmt.Errorf("parse alarm sheet template: %w", err)
	}

	j.template = parsed

	if err = os.MkdirAll(j.cfg.SpoolDirectory, 0o750); err != nil {
		return fmt.Errorf("create spool directory: %w", err)
	}

	return nil
}

// Execute renders one alarm sheet per operation.
func (j *Job) Execute(ctx context.Context, _ *job.Context, op *operation.Operation) error {
	var b strings.Builder
	if err := j.template.Execute(&b, op); err != nil {
		return fmt.Errorf("render alarm sheet: %w", err)
	}

	path := filepath.Join(j.cfg.SpoolDirectory, op.GUID+".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write alarm sheet: %w", err)
	}

	logger.InfoKV(ctx, "Alarm sheet spooled", "path", path)

	return nil
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	return nil
}
