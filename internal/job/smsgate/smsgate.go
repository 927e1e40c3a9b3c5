// Package smsgate sends short alarm texts to phone recipients through an
// HTTP SMS gateway.
package smsgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dispatchworks/alarmhub/internal/addressing"
	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Alias is the registry alias of this job.
const Alias = "smsgate"

// maxTextLength keeps the message within a single SMS segment budget.
const maxTextLength = 160

// message is the request body posted to the gateway.
type message struct {
	Recipients []string `json:"recipients"`
	Text       string   `json:"text"`
}

// Job posts alarm texts to the configured SMS gateway.
type Job struct {
	cfg    config.SMS
	book   *addressing.Service
	client *http.Client
}

// New creates an SMS job.
func New(cfg config.SMS, book *addressing.Service) *Job {
	return &Job{
		cfg:    cfg,
		book:   book,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.SMS, book *addressing.Service) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "sends short alarm texts via an HTTP SMS gateway",
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
	if j.cfg.URL == "" {
		return errors.New("sms gateway url is not configured")
	}

	return nil
}

// Execute sends one gateway request covering all accepted phone recipients.
func (j *Job) Execute(ctx context.Context, _ *job.Context, op *operation.Operation) error {
	recipients := addressing.CustomObjectsFiltered[addressing.Phone](j.book, addressing.TypePhone, op)
	if len(recipients) == 0 {
		logger.Debug(ctx, "No SMS recipients for operation")

		return nil
	}

	numbers := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		numbers = append(numbers, recipient.Data.Number)
	}

	payload, err := json.Marshal(message{
		Recipients: numbers,
		Text:       TextFor(op),
	})
	if err != nil {
		return fmt.Errorf("marshal sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if j.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+j.cfg.Token)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sms gateway returned %s", resp.Status)
	}

	logger.InfoKV(ctx, "Alarm SMS sent", "recipients", len(numbers))

	return nil
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	j.client.CloseIdleConnections()

	return nil
}

// TextFor builds the short alarm text, truncated to one SMS segment.
func TextFor(op *operation.Operation) string {
	parts := make([]string, 0, 3)

	if keyword := op.Keywords.String(); keyword != "" {
		parts = append(parts, keyword)
	}

	if location := op.Einsatzort.String(); location != "" {
		parts = append(parts, location)
	}

	if op.Comment != "" {
		parts = append(parts, op.Comment)
	}

	text := strings.Join(parts, " - ")
	if text == "" {
		text = op.Number
	}

	if runes := []rune(text); len(runes) > maxTextLength {
		text = string(runes[:maxTextLength])
	}

	return text
}
