package device

import (
	"sync/atomic"
	"time"
)

// State is a device worker's connection state.
type State int32

const (
	// Disconnected means no WebSocket connection is open or being attempted.
	Disconnected State = iota
	// Connecting means a dial is in flight.
	Connecting
	// Connected means the WebSocket handshake completed and frames may be
	// sent.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Info is a point-in-time snapshot of a device's counters and state, safe to
// retain and serialize after it is returned.
type Info struct {
	ID    string
	Name  string
	IP    string
	State State

	PixelCount int

	PacketsIn     int64
	PacketsOut    int64
	PixelsReceived int64

	Created time.Time
}

// Device is one configured display device: its identity, its pixel buffer,
// and the counters accumulated against it. A Device is created once at
// startup from configuration and is shared between the dispatch table
// (which absorbs packets into it) and a Worker (which drains it over a
// WebSocket connection).
type Device struct {
	ID   string
	Name string
	IP   string

	Buffer *Buffer
	MaxFps int

	state atomic.Int32

	packetsIn      atomic.Int64
	packetsOut     atomic.Int64
	pixelsReceived atomic.Int64

	// pendingPixels counts pixels absorbed since the worker's last send
	// attempt, independent of the status-tick counters above (which reset
	// on a different, UI-driven cadence). The worker drains it via
	// TakePendingPixels to decide whether a frame is worth sending.
	pendingPixels atomic.Int64

	created time.Time
}

// New constructs a Device with a freshly allocated, zeroed pixel buffer of
// the given size.
func New(id, name, ip string, pixelCount, maxFps int) *Device {
	return &Device{
		ID:      id,
		Name:    name,
		IP:      ip,
		Buffer:  NewBuffer(pixelCount),
		MaxFps:  maxFps,
		created: time.Now(),
	}
}

// State returns the device's current connection state.
func (d *Device) State() State { return State(d.state.Load()) }

// SetState updates the device's connection state. It is safe for concurrent
// use; only a Device's own Worker should call it.
func (d *Device) SetState(s State) {
	d.state.Store(int32(s))
	reportState(d)
}

// RecordAbsorb increments this device's packet and pixel counters. It is
// safe for concurrent use; the dispatch table calls it from whichever
// goroutine is running the receive loop.
func (d *Device) RecordAbsorb(pixels int) {
	d.packetsIn.Add(1)
	d.pixelsReceived.Add(int64(pixels))
	d.pendingPixels.Add(int64(pixels))
	reportAbsorb(d, pixels)
}

// TakePendingPixels returns the number of pixels absorbed since the last
// call, resetting the count to zero. A Worker calls this once per send
// tick: a device with nothing new to show since its last frame must not
// emit one.
func (d *Device) TakePendingPixels() int64 {
	return d.pendingPixels.Swap(0)
}

// RecordSend increments this device's sent-packet counter. It is safe for
// concurrent use.
func (d *Device) RecordSend() {
	d.packetsOut.Add(1)
	reportSend(d)
}

// RecordSendError reports a failed send attempt to monitoring without
// affecting the sent-packet counter.
func (d *Device) RecordSendError() { reportSendError(d) }

// Info returns a snapshot of this device's current state and counters.
func (d *Device) Info() Info {
	return Info{
		ID:             d.ID,
		Name:           d.Name,
		IP:             d.IP,
		State:          d.State(),
		PixelCount:     d.Buffer.Len(),
		PacketsIn:      d.packetsIn.Load(),
		PacketsOut:     d.packetsOut.Load(),
		PixelsReceived: d.pixelsReceived.Load(),
		Created:        d.created,
	}
}

// ResetCounters zeroes the packet and pixel counters, leaving connection
// state and the pixel buffer untouched. The router supervisor calls this
// once per status-update tick after sampling Info.
func (d *Device) ResetCounters() {
	d.packetsIn.Store(0)
	d.packetsOut.Store(0)
	d.pixelsReceived.Store(0)
}
