// Package config loads and validates the router's project configuration.
//
// The configuration describes system-wide options, the fleet of display
// devices, and the universe fragments each device consumes. It is produced
// by an external loader (this package) and consumed once by the router
// supervisor on start; the router itself never mutates it.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	// DefaultArtNetPort is the standard Art-Net control port.
	DefaultArtNetPort = 6454

	// DefaultPixelsPerUniverse is the value SystemConfig.PixelsPerUniverse
	// takes when the config leaves it unset (170 RGB pixels = 510 DMX
	// channels).
	DefaultPixelsPerUniverse = 170

	// MaxPixelsPerUniverse is the hard ceiling on pixelsPerUniverse.
	MaxPixelsPerUniverse = 170

	// DefaultMaxFps is the default outgoing frame rate cap.
	DefaultMaxFps = 30

	// DefaultStatusUpdateIntervalMs is the default status sampler cadence.
	DefaultStatusUpdateIntervalMs = 3000

	// MinStatusUpdateIntervalMs is the floor for statusUpdateIntervalMs.
	MinStatusUpdateIntervalMs = 500

	// dmxChannelsPerUniverse is the fixed DMX-512 channel budget.
	dmxChannelsPerUniverse = 512
)

// SystemConfig holds system-wide options. It is immutable for the life of a
// router run; adopting new values requires a router restart.
type SystemConfig struct {
	// IngressAddr is the bind address for the Art-Net UDP listener (IPv4 or
	// "0.0.0.0").
	IngressAddr string `toml:"artnet_addr"`
	// IngressPort is the Art-Net UDP listen port.
	IngressPort int `toml:"artnet_port"`

	// UIAddr and UIPort are passed through to the external control-plane UI;
	// the router core never binds them.
	UIAddr string `toml:"ui_addr"`
	UIPort int    `toml:"ui_port"`

	// MaxFps is the global upper bound on outgoing frames per device per
	// second.
	MaxFps int `toml:"max_fps"`

	// PixelsPerUniverse is clamped to [1, MaxPixelsPerUniverse].
	PixelsPerUniverse int `toml:"pixels_per_universe"`

	// StatusUpdateIntervalMs is the status sampler cadence, clamped to a
	// floor of MinStatusUpdateIntervalMs.
	StatusUpdateIntervalMs int `toml:"status_update_interval_ms"`

	// AnnounceIntervalMs, if > 0, enables an unsolicited periodic broadcast
	// of the precomputed ArtPollReply to BroadcastAddr. This is the optional
	// "discovery/time-sync beacon" allowed by the specification's
	// non-goals; it is off by default.
	AnnounceIntervalMs int `toml:"announce_interval_ms"`
	// BroadcastAddr is the destination used by the announce beacon, e.g.
	// "255.255.255.255:6454".
	BroadcastAddr string `toml:"broadcast_addr"`
}

// Device is one configured display-device controller.
type Device struct {
	// ID is a stable string key, unique within a project.
	ID string `toml:"id"`
	// Name is a display string shown on the control plane.
	Name string `toml:"name"`
	// IP is the controller's address; the WebSocket dials ws://IP:81.
	IP string `toml:"ip"`
	// PixelCount sizes the device's pixel buffer. Fixed for the worker's
	// life; the buffer is never reallocated.
	PixelCount int `toml:"pixel_count"`
	// MaxFps is a device-local cap. The effective cap used by the worker is
	// min(Device.MaxFps, SystemConfig.MaxFps).
	MaxFps int `toml:"max_fps"`

	// Fragments lists the universe slices this device consumes.
	Fragments []Fragment `toml:"fragment"`
}

// Fragment is one slice of an incoming Art-Net universe destined for a
// contiguous region of its owning device's pixel buffer.
type Fragment struct {
	Net      int `toml:"net"`
	Subnet   int `toml:"subnet"`
	Universe int `toml:"universe"`

	// StartChannel is the 0-based DMX channel index into the incoming
	// universe payload where this fragment begins.
	StartChannel int `toml:"start_channel"`
	// DestIndex is the 0-based index in the owning device's pixel buffer
	// where the first produced pixel is written.
	DestIndex int `toml:"dest_index"`
	// PixelCount is the number of pixels this fragment produces.
	PixelCount int `toml:"pixel_count"`
}

// AddressMask returns the Art-Net address mask for this fragment:
// (net<<8) | (subnet<<4) | universe.
func (f Fragment) AddressMask() uint16 {
	return uint16(f.Net&0x7F)<<8 | uint16(f.Subnet&0x0F)<<4 | uint16(f.Universe&0x0F)
}

// Project is the root of a parsed configuration file.
type Project struct {
	System  SystemConfig `toml:"system"`
	Devices []Device     `toml:"device"`
}

// Load reads and parses a TOML project file from path, applies defaults,
// and validates it. A returned error means the router must refuse to start.
func Load(path string) (*Project, error) {
	var p Project
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %q", path)
	}

	p.applyDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Project) applyDefaults() {
	if p.System.IngressPort == 0 {
		p.System.IngressPort = DefaultArtNetPort
	}
	if p.System.IngressAddr == "" {
		p.System.IngressAddr = "0.0.0.0"
	}
	if p.System.MaxFps == 0 {
		p.System.MaxFps = DefaultMaxFps
	}
	if p.System.PixelsPerUniverse == 0 {
		p.System.PixelsPerUniverse = DefaultPixelsPerUniverse
	}
	p.System.PixelsPerUniverse = clamp(p.System.PixelsPerUniverse, 1, MaxPixelsPerUniverse)

	if p.System.StatusUpdateIntervalMs == 0 {
		p.System.StatusUpdateIntervalMs = DefaultStatusUpdateIntervalMs
	}
	if p.System.StatusUpdateIntervalMs < MinStatusUpdateIntervalMs {
		p.System.StatusUpdateIntervalMs = MinStatusUpdateIntervalMs
	}

	for i := range p.Devices {
		d := &p.Devices[i]
		if d.MaxFps == 0 || d.MaxFps > p.System.MaxFps {
			d.MaxFps = p.System.MaxFps
		}
	}
}

// Validate checks the AddressOutOfRange invariants from the specification.
// A Fragment whose startChannel+3*pixelCount exceeds 512, or whose
// destIndex+pixelCount exceeds its device's pixelCount, is a fatal
// configuration error — the router must refuse to start rather than
// silently truncate at load time (truncation only happens per-packet, at
// runtime, for absorption that crosses the buffer boundary after a device
// has legitimately fewer pixels than a well-formed fragment describes).
func (p *Project) Validate() error {
	seen := make(map[string]struct{}, len(p.Devices))
	for _, d := range p.Devices {
		if d.ID == "" {
			return errors.New("device with empty id")
		}
		if _, dup := seen[d.ID]; dup {
			return errors.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.PixelCount < 0 {
			return errors.Errorf("device %q: negative pixel_count", d.ID)
		}

		for i, f := range d.Fragments {
			if f.StartChannel < 0 || f.StartChannel > dmxChannelsPerUniverse-1 {
				return errors.Errorf("device %q fragment %d: start_channel %d out of range", d.ID, i, f.StartChannel)
			}
			if f.StartChannel+3*f.PixelCount > dmxChannelsPerUniverse {
				return errors.Errorf(
					"device %q fragment %d: start_channel %d + 3*pixel_count %d exceeds %d DMX channels",
					d.ID, i, f.StartChannel, f.PixelCount, dmxChannelsPerUniverse)
			}
			if f.DestIndex < 0 || f.DestIndex+f.PixelCount > d.PixelCount {
				return errors.Errorf(
					"device %q fragment %d: dest_index %d + pixel_count %d exceeds device pixel_count %d",
					d.ID, i, f.DestIndex, f.PixelCount, d.PixelCount)
			}
			if f.Universe < 0 || f.Universe > 15 {
				return errors.Errorf("device %q fragment %d: universe %d out of range [0,15]", d.ID, i, f.Universe)
			}
			if f.Subnet < 0 || f.Subnet > 15 {
				return errors.Errorf("device %q fragment %d: subnet %d out of range [0,15]", d.ID, i, f.Subnet)
			}
			if f.Net < 0 || f.Net > 127 {
				return errors.Errorf("device %q fragment %d: net %d out of range [0,127]", d.ID, i, f.Net)
			}
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
