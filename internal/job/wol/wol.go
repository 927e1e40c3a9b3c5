// Package wol wakes configured machines via Wake-on-LAN when an operation
// is stored, so display and printing stations power up with the alarm.
package wol

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Alias is the registry alias of this job.
const Alias = "wol"

// defaultBroadcast targets the local broadcast domain on the discard port.
const defaultBroadcast = "255.255.255.255:9"

// Job sends magic packets to the configured hardware addresses.
type Job struct {
	broadcast string
	macs      []net.HardwareAddr
	cfg       config.WOL
}

// New creates a wake-on-LAN job.
func New(cfg config.WOL) *Job {
	broadcast := cfg.BroadcastAddress
	if broadcast == "" {
		broadcast = defaultBroadcast
	}

	return &Job{
		broadcast: broadcast,
		cfg:       cfg,
	}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.WOL) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "wakes configured machines via magic packets",
		New: func() (job.Job, error) {
			return New(cfg), nil
		},
	})
}

// IsAsync implements job.Job. Sending a handful of UDP datagrams is cheap
// enough to run inline.
func (j *Job) IsAsync() bool { return false }

// Phases implements job.Job.
func (j *Job) Phases() []job.Phase {
	return []job.Phase{job.PhaseAfterOperationStored}
}

// Initialize parses the configured hardware addresses up front, so typos
// fail the job at startup instead of on the first alarm.
func (j *Job) Initialize(_ context.Context) error {
	if len(j.cfg.MACAddresses) == 0 {
		return errors.New("no mac addresses configured")
	}

	j.macs = make([]net.HardwareAddr, 0, len(j.cfg.MACAddresses))
	for _, raw := range j.cfg.MACAddresses {
		mac, err := net.ParseMAC(raw)
		if err != nil {
			return fmt.Errorf("invalid mac address %q: %w", raw, err)
		}

		j.macs = append(j.macs, mac)
	}

	return nil
}

// Execute sends one magic packet per configured machine.
func (j *Job) Execute(ctx context.Context, _ *job.Context, _ *operation.Operation) error {
	conn, err := net.Dial("udp", j.broadcast)
	if err != nil {
		return fmt.Errorf("dial %s: %w", j.broadcast, err)
	}
	defer conn.Close()

	var errs []error

	for _, mac := range j.macs {
		if _, err = conn.Write(MagicPacket(mac)); err != nil {
			errs = append(errs, fmt.Errorf("wake %s: %w", mac, err))

			continue
		}

		logger.DebugKV(ctx, "Magic packet sent", "mac", mac.String())
	}

	return errors.Join(errs...)
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	return nil
}

// MagicPacket builds the wake-on-LAN payload: six 0xFF bytes followed by
// the hardware address repeated sixteen times.
func MagicPacket(mac net.HardwareAddr) []byte {
	packet := make([]byte, 0, 6+16*len(mac))

	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}

	for i := 0; i < 16; i++ {
		packet = append(packet, mac...)
	}

	return packet
}
