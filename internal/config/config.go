package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all settings for the alarm-hub process.
type Config struct {
	// LogLevel is the minimum level for log output (debug, info, warn, error).
	LogLevel string `yaml:"log_level" env:"ALARMHUB_LOG_LEVEL"`
	// MetricsAddress is the optional listen address for the Prometheus
	// endpoint. Metrics are disabled when empty.
	MetricsAddress string `yaml:"metrics_addr" env:"ALARMHUB_METRICS_ADDR"`

	Store      Store      `yaml:"store"`
	Engine     Engine     `yaml:"engine"`
	Sources    Sources    `yaml:"sources"`
	Jobs       Jobs       `yaml:"jobs"`
	Addressing Addressing `yaml:"addressing"`
}

// Store configures operation persistence.
type Store struct {
	// Path is the sqlite database file.
	Path string `yaml:"path" env:"ALARMHUB_STORE_PATH"`
}

// Engine configures the ingestion coordinator.
type Engine struct {
	// AsyncWorkers bounds the worker pool for asynchronous jobs.
	AsyncWorkers int `yaml:"async_workers"`
	// ShutdownGrace is how long sources get to unblock on shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Sources selects and configures the alarm source adapters.
type Sources struct {
	// Enabled lists source aliases to start.
	Enabled []string `yaml:"enabled"`

	FileDrop FileDrop `yaml:"filedrop"`
	NATS     NATS     `yaml:"natsbus"`
}

// FileDrop configures the fax/OCR drop directory source.
type FileDrop struct {
	// Directory is watched for incoming dispatch text files.
	Directory string `yaml:"directory"`
	// ArchiveDirectory receives consumed files. Defaults to
	// Directory/archive when empty.
	ArchiveDirectory string `yaml:"archive_directory"`
}

// NATS configures the network push source.
type NATS struct {
	URL     string `yaml:"url" env:"ALARMHUB_NATS_URL"`
	Subject string `yaml:"subject"`
}

// Jobs selects and configures the notification/automation jobs.
type Jobs struct {
	// Enabled lists job aliases in execution order. Enrichment jobs run
	// exactly in this order.
	Enabled []string `yaml:"enabled"`

	Geocode Geocode `yaml:"geocode"`
	Mailer  Mailer  `yaml:"mailer"`
	Push    Push    `yaml:"push"`
	SMS     SMS     `yaml:"smsgate"`
	WOL     WOL     `yaml:"wol"`
	Export  Export  `yaml:"export"`
	Printer Printer `yaml:"printer"`
}

// Geocode configures the coordinate enrichment job.
type Geocode struct {
	// Endpoint is a Nominatim-compatible search URL.
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Mailer configures SMTP fan-out.
type Mailer struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password" env:"ALARMHUB_SMTP_PASSWORD"`
	// SubjectPrefix is prepended to every alarm mail subject.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Push configures push notification fan-out.
type Push struct {
	// Gateways maps a consumer tag (as stored in the address book) to the
	// HTTP endpoint notifications are posted to.
	Gateways map[string]string `yaml:"gateways"`
	Timeout  time.Duration     `yaml:"timeout"`
}

// SMS configures the SMS gateway job.
type SMS struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token" env:"ALARMHUB_SMS_TOKEN"`
	Timeout time.Duration `yaml:"timeout"`
}

// WOL configures the wake-on-LAN job.
type WOL struct {
	// MACAddresses lists the hardware addresses to wake.
	MACAddresses []string `yaml:"mac_addresses"`
	// BroadcastAddress is the UDP target for magic packets.
	BroadcastAddress string `yaml:"broadcast_address"`
}

// Export configures the file export job.
type Export struct {
	Directory string `yaml:"directory"`
}

// Printer configures the spool rendering job.
type Printer struct {
	SpoolDirectory string `yaml:"spool_directory"`
	// Template overrides the built-in summary template when set.
	Template string `yaml:"template"`
}

// Addressing configures the address book and its filter chain.
type Addressing struct {
	// BookPath is the YAML address book file, watched for changes.
	BookPath string `yaml:"book_path" env:"ALARMHUB_ADDRESS_BOOK"`
	// Filters lists filter aliases in evaluation order. An entry must pass
	// every filter to receive notifications.
	Filters []string `yaml:"filters"`
	// ReloadDebounce delays reloads to coalesce bursts of file events.
	ReloadDebounce time.Duration `yaml:"reload_debounce"`
}

const (
	// DefaultConfigFilename is the default settings file name.
	DefaultConfigFilename = "alarm-hub-settings.yaml"

	// DefaultStorePath is the default sqlite database file.
	DefaultStorePath = "alarm-hub.db"

	// DefaultAddressBookFilename is the default address book file name.
	DefaultAddressBookFilename = "alarm-hub-addressbook.yaml"

	// DefaultAsyncWorkers bounds the async job pool when unconfigured.
	DefaultAsyncWorkers = 4

	// DefaultShutdownGrace is the default source shutdown grace period.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultReloadDebounce coalesces address book file events.
	DefaultReloadDebounce = 250 * time.Millisecond

	// DefaultHTTPTimeout is the default timeout for outbound HTTP calls.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultFilePermissions restricts settings files to the owner.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoSourcesEnabled is returned when the source list is empty.
	errNoSourcesEnabled = errors.New("at least one alarm source must be enabled")
	// errDuplicateAlias is returned when an alias appears twice in a list.
	errDuplicateAlias = errors.New("duplicate alias")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	// Environment wins over the file, mirroring deploy-time secrets.
	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may carry gateway credentials.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if len(cfg.Sources.Enabled) == 0 {
		return errNoSourcesEnabled
	}

	if err := requireUnique("sources.enabled", cfg.Sources.Enabled); err != nil {
		return err
	}

	if err := requireUnique("jobs.enabled", cfg.Jobs.Enabled); err != nil {
		return err
	}

	if err := requireUnique("addressing.filters", cfg.Addressing.Filters); err != nil {
		return err
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Engine.AsyncWorkers <= 0 {
		cfg.Engine.AsyncWorkers = DefaultAsyncWorkers
	}

	if cfg.Engine.ShutdownGrace <= 0 {
		cfg.Engine.ShutdownGrace = DefaultShutdownGrace
	}

	if cfg.Addressing.BookPath == "" {
		cfg.Addressing.BookPath = DefaultAddressBookFilename
	}

	if cfg.Addressing.ReloadDebounce <= 0 {
		cfg.Addressing.ReloadDebounce = DefaultReloadDebounce
	}

	if slices.Contains(cfg.Sources.Enabled, "filedrop") && cfg.Sources.FileDrop.Directory == "" {
		return errors.New("sources.filedrop.directory must be set when the filedrop source is enabled")
	}

	if slices.Contains(cfg.Sources.Enabled, "natsbus") {
		if cfg.Sources.NATS.URL == "" || cfg.Sources.NATS.Subject == "" {
			return errors.New("sources.natsbus.url and subject must be set when the natsbus source is enabled")
		}
	}

	if cfg.Jobs.Geocode.Timeout <= 0 {
		cfg.Jobs.Geocode.Timeout = DefaultHTTPTimeout
	}

	if cfg.Jobs.Push.Timeout <= 0 {
		cfg.Jobs.Push.Timeout = DefaultHTTPTimeout
	}

	if cfg.Jobs.SMS.Timeout <= 0 {
		cfg.Jobs.SMS.Timeout = DefaultHTTPTimeout
	}

	return nil
}

// requireUnique rejects alias lists with repeated entries.
func requireUnique(field string, aliases []string) error {
	seen := make(map[string]struct{}, len(aliases))
	for _, alias := range aliases {
		if _, ok := seen[alias]; ok {
			return fmt.Errorf("%s: %q: %w", field, alias, errDuplicateAlias)
		}

		seen[alias] = struct{}{}
	}

	return nil
}
