// Package geocode enriches surfacing operations with coordinates resolved
// from the dispatch address, so downstream distribution can include map
// links even when the control center only sends a street address.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
	"github.com/dispatchworks/alarmhub/internal/version"
)

// Alias is the registry alias of this job.
const Alias = "geocode"

// Job resolves missing Einsatzort coordinates via a Nominatim-compatible
// search endpoint.
type Job struct {
	cfg    config.Geocode
	client *http.Client
}

// New creates a geocode job from its configuration.
func New(cfg config.Geocode) *Job {
	return &Job{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.Geocode) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "resolves missing operation coordinates via a geocoding service",
		New: func() (job.Job, error) {
			return New(cfg), nil
		},
	})
}

// IsAsync implements job.Job. Enrichment must finish before persistence.
func (j *Job) IsAsync() bool { return false }

// Phases implements job.Job.
func (j *Job) Phases() []job.Phase {
	return []job.Phase{job.PhaseOnOperationSurfaced}
}

// Initialize implements job.Job.
func (j *Job) Initialize(_ context.Context) error {
	if j.cfg.Endpoint == "" {
		return errors.New("geocode endpoint is not configured")
	}

	return nil
}

// Execute fills the Einsatzort coordinates. Operations that already carry
// coordinates pass through untouched.
func (j *Job) Execute(ctx context.Context, _ *job.Context, op *operation.Operation) error {
	if op.Einsatzort.HasCoordinates() {
		return nil
	}

	query := addressQuery(op.Einsatzort)
	if query == "" {
		logger.Debug(ctx, "No address to geocode")

		return nil
	}

	latitude, longitude, err := j.lookup(ctx, query)
	if err != nil {
		return fmt.Errorf("geocode %q: %w", query, err)
	}

	op.Einsatzort.Latitude = &latitude
	op.Einsatzort.Longitude = &longitude

	logger.InfoKV(ctx, "Operation geocoded", "latitude", latitude, "longitude", longitude)

	return nil
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	j.client.CloseIdleConnections()

	return nil
}

func (j *Job) lookup(ctx context.Context, query string) (latitude, longitude float64, err error) {
	endpoint, err := url.Parse(j.cfg.Endpoint)
	if err != nil {
		return 0, 0, fmt.Errorf("parse endpoint: %w", err)
	}

	values := endpoint.Query()
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("limit", "1")
	endpoint.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return 0, 0, err
	}

	// Public geocoding services reject requests without an identifying agent.
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := j.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var results []struct {
		Latitude  string `json:"lat"`
		Longitude string `json:"lon"`
	}

	if err = json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("decode response: %w", err)
	}

	if len(results) == 0 {
		return 0, 0, errors.New("no match")
	}

	if latitude, err = strconv.ParseFloat(results[0].Latitude, 64); err != nil {
		return 0, 0, fmt.Errorf("parse latitude: %w", err)
	}

	if longitude, err = strconv.ParseFloat(results[0].Longitude, 64); err != nil {
		return 0, 0, fmt.Errorf("parse longitude: %w", err)
	}

	return latitude, longitude, nil
}

// addressQuery joins the known address parts into a search string.
func addressQuery(location operation.Location) string {
	var parts []string

	if location.Street != "" {
		street := location.Street
		if location.HouseNumber != "" {
			street += " " + location.HouseNumber
		}

		parts = append(parts, street)
	}

	if location.ZipCode != "" || location.City != "" {
		parts = append(parts, strings.TrimSpace(location.ZipCode+" "+location.City))
	}

	return strings.Join(parts, ", ")
}
