package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dispatchworks/alarmhub/internal/addressing"
	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/job/export"
	"github.com/dispatchworks/alarmhub/internal/job/geocode"
	"github.com/dispatchworks/alarmhub/internal/job/mailer"
	"github.com/dispatchworks/alarmhub/internal/job/printer"
	"github.com/dispatchworks/alarmhub/internal/job/push"
	"github.com/dispatchworks/alarmhub/internal/job/smsgate"
	"github.com/dispatchworks/alarmhub/internal/job/wol"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
	"github.com/dispatchworks/alarmhub/internal/source"
	"github.com/dispatchworks/alarmhub/internal/source/filedrop"
	"github.com/dispatchworks/alarmhub/internal/source/natsbus"
	"github.com/dispatchworks/alarmhub/internal/store"
)

// Options controls the alarm-hub process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// MetricsAddress provides an optional listen address override for the
	// Prometheus endpoint.
	MetricsAddress string
}

// metricsShutdownTimeout bounds how long the metrics listener may take to
// stop during shutdown.
const metricsShutdownTimeout = 5 * time.Second

// Run wires the full ingestion pipeline from configuration and blocks until
// the context is canceled: store, address book with its watcher, source and
// job registries, the optional metrics listener and finally the engine.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-hub")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	st, err := store.NewSQLiteStore(ctx, settings.Store.Path)
	if err != nil {
		return fmt.Errorf("open operation store: %w", err)
	}

	defer func() {
		if err := st.Close(); err != nil {
			logger.Warnf(ctx, "Failed to close operation store: %v", err)
		}
	}()

	book, err := buildAddressBook(ctx, settings.Addressing)
	if err != nil {
		return err
	}

	jobs, err := buildJobs(ctx, settings, book)
	if err != nil {
		return err
	}

	eng := New(st, jobs)

	if err = addSources(settings.Sources, eng); err != nil {
		return err
	}

	metricsAddress := settings.MetricsAddress
	if opts.MetricsAddress != "" {
		metricsAddress = opts.MetricsAddress
	}

	if metricsAddress != "" {
		stopMetrics := serveMetrics(ctx, metricsAddress)
		defer stopMetrics()
	}

	logger.InfoKV(ctx, "Alarm hub started",
		"sources", settings.Sources.Enabled,
		"jobs", settings.Jobs.Enabled,
		"store", settings.Store.Path,
	)

	return eng.Run(ctx, settings.Engine.ShutdownGrace)
}

// buildAddressBook creates the addressing service with its configured
// filter chain, loads the book and starts the file watcher.
func buildAddressBook(ctx context.Context, cfg config.Addressing) (*addressing.Service, error) {
	filterRegistry := registry.New[addressing.Filter]("address filter")
	if err := addressing.RegisterBuiltinFilters(filterRegistry); err != nil {
		return nil, fmt.Errorf("register address filters: %w", err)
	}

	filters := make([]addressing.NamedFilter, 0, len(cfg.Filters))

	for _, alias := range cfg.Filters {
		filter, err := filterRegistry.Resolve(alias)
		if err != nil {
			return nil, fmt.Errorf("resolve address filter %q: %w", alias, err)
		}

		filters = append(filters, addressing.NamedFilter{Alias: alias, Filter: filter})
	}

	book := addressing.NewService(cfg, addressing.BuiltinProviders(), filters)

	// A missing book is not fatal: the watcher picks it up once it appears.
	if err := book.Reload(ctx); err != nil {
		logger.Warnf(ctx, "Address book not loaded, starting with an empty one: %v", err)
	}

	go func() {
		if err := book.Watch(ctx, cfg.ReloadDebounce); err != nil {
			logger.Errorf(ctx, "Address book watcher stopped: %v", err)
		}
	}()

	return book, nil
}

// buildJobs registers all known jobs, then resolves and initializes the
// enabled ones in their configured order. A job failing to initialize is
// skipped with a warning; the alarm pipeline still runs.
func buildJobs(ctx context.Context, settings *config.Config, book *addressing.Service) (*JobManager, error) {
	jobRegistry := registry.New[job.Job]("job")

	if err := errors.Join(
		geocode.Register(jobRegistry, settings.Jobs.Geocode),
		mailer.Register(jobRegistry, settings.Jobs.Mailer, book),
		push.Register(jobRegistry, settings.Jobs.Push, book),
		smsgate.Register(jobRegistry, settings.Jobs.SMS, book),
		wol.Register(jobRegistry, settings.Jobs.WOL),
		export.Register(jobRegistry, settings.Jobs.Export),
		printer.Register(jobRegistry, settings.Jobs.Printer),
	); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	jobs := NewJobManager(settings.Engine.AsyncWorkers)

	for _, alias := range settings.Jobs.Enabled {
		j, err := jobRegistry.Resolve(alias)
		if err != nil {
			return nil, fmt.Errorf("resolve job %q: %w", alias, err)
		}

		if err = j.Initialize(ctx); err != nil {
			logger.Warnf(ctx, "Skipping job %q: initialization failed: %v", alias, err)

			continue
		}

		jobs.Add(alias, j)
	}

	return jobs, nil
}

// addSources registers all known sources and adds the enabled ones to the
// engine. Source initialization happens inside the engine, per source
// goroutine.
func addSources(cfg config.Sources, eng *Engine) error {
	sourceRegistry := registry.New[source.Source]("alarm source")

	if err := errors.Join(
		filedrop.Register(sourceRegistry, cfg.FileDrop),
		natsbus.Register(sourceRegistry, cfg.NATS),
	); err != nil {
		return fmt.Errorf("register alarm sources: %w", err)
	}

	for _, alias := range cfg.Enabled {
		src, err := sourceRegistry.Resolve(alias)
		if err != nil {
			return fmt.Errorf("resolve alarm source %q: %w", alias, err)
		}

		eng.AddSource(alias, src)
	}

	return nil
}

// serveMetrics starts the Prometheus listener and returns a function that
// shuts it down.
func serveMetrics(ctx context.Context, address string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	go func() {
		logger.InfoKV(ctx, "Metrics listener started", "address", address)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "Metrics listener failed: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf(ctx, "Metrics listener shutdown failed: %v", err)
		}
	}
}
