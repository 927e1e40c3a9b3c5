// Package push notifies mobile recipients about stored operations through
// consumer-specific push gateways. Recipients declare the gateway they are
// registered with in their address book item; the job groups accepted
// recipients per consumer and posts one request per gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dispatchworks/alarmhub/internal/addressing"
	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Alias is the registry alias of this job.
const Alias = "push"

// notification is the request body posted to a push gateway.
type notification struct {
	APIKeys  []string `json:"api_keys"`
	Event    string   `json:"event"`
	Number   string   `json:"number"`
	Location string   `json:"location,omitempty"`
	Comment  string   `json:"comment,omitempty"`
}

// Job posts alarm notifications to the configured push gateways.
type Job struct {
	cfg    config.Push
	book   *addressing.Service
	client *http.Client
}

// New creates a push job.
func New(cfg config.Push, book *addressing.Service) *Job {
	return &Job{
		cfg:    cfg,
		book:   book,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.Push, book *addressing.Service) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "posts alarm notifications to per-consumer push gateways",
		New: func() (job.Job, error) {
			return New(cfg, book), nil
		},
	})
}

// IsAsync implements job.Job.
func (j *Job) IsAsync() bool { return true }

// Phases implements job.Job.
func (j *Job) Phases() []job.Phase {
	return []job.Phase{job.PhaseAfterOperationStored}
}

// Initialize implements job.Job.
func (j *Job) Initialize(_ context.Context) error {
	if len(j.cfg.Gateways) == 0 {
		return errors.New("no push gateways configured")
	}

	return nil
}

// Execute groups accepted recipients per consumer and posts one
// notification per gateway. A failing gateway does not stop the others.
func (j *Job) Execute(ctx context.Context, _ *job.Context, op *operation.Operation) error {
	recipients := addressing.CustomObjectsFiltered[addressing.Push](j.book, addressing.TypePush, op)
	if len(recipients) == 0 {
		logger.Debug(ctx, "No push recipients for operation")

		return nil
	}

	keysByConsumer := make(map[string][]string)
	for _, recipient := range recipients {
		keysByConsumer[recipient.Data.Consumer] = append(keysByConsumer[recipient.Data.Consumer], recipient.Data.APIKey)
	}

	var errs []error

	for consumer, keys := range keysByConsumer {
		gateway, ok := j.cfg.Gateways[consumer]
		if !ok {
			logger.WarnKV(ctx, "No gateway configured for push consumer, skipping its recipients",
				"consumer", consumer, "recipients", len(keys))

			continue
		}

		if err := j.post(ctx, gateway, notification{
			APIKeys:  keys,
			Event:    op.Keywords.String(),
			Number:   op.Number,
			Location: op.Einsatzort.String(),
			Comment:  op.Comment,
		}); err != nil {
			errs = append(errs, fmt.Errorf("consumer %s: %w", consumer, err))
		}
	}

	return errors.Join(errs...)
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	j.client.CloseIdleConnections()

	return nil
}

func (j *Job) post(ctx context.Context, gateway string, body notification) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gateway, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}

	return nil
}
