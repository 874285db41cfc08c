// Package controlplane carries status information out of the router to
// whatever external UI or logging consumer wants it, mirroring the
// multiprocessing Event/Queue pair the reference implementation used to
// cross its process boundary. This router is single-process, so the
// crossing is just a channel and a pair of atomics, but the shape — a
// bounded, drop-oldest status feed plus two independently-settable flags —
// is kept the same.
package controlplane

import (
	"encoding/json"
	"sync/atomic"

	"github.com/flamecast/flamecast/device"
	"github.com/flamecast/flamecast/dispatch"
)

// StatusRecord is one status sample emitted for a single device on a status
// tick: its identity, its configured rate cap, the rates actually observed
// over the tick interval, and whether its WebSocket is currently up. The
// supervisor computes InPps/OutFps from the raw packet counters and the
// tick's elapsed time before publishing, so a UI consumer never needs to
// see a raw counter or do its own rate math.
type StatusRecord struct {
	Name      string  `json:"name"`
	IP        string  `json:"ip"`
	MaxFps    int     `json:"maxFps"`
	InPps     float64 `json:"inPps"`
	OutFps    float64 `json:"outFps"`
	Connected bool    `json:"connected"`
}

// Bridge is the channel between the router's internal goroutines and an
// external consumer (a web UI, a log sink, a metrics scraper). It never
// blocks a producer: Publish drops the oldest queued record rather than
// stall the caller, matching the reference implementation's preference for
// keeping the router's own loops running over guaranteeing delivery of every
// status sample.
type Bridge struct {
	status chan StatusRecord

	uiActive      atomic.Bool
	exitRequested atomic.Bool
}

// defaultStatusQueueDepth bounds the status channel. It is sized generously
// relative to any reasonable device count so that Publish only drops under
// sustained UI unresponsiveness.
const defaultStatusQueueDepth = 256

// NewBridge constructs a ready-to-use Bridge.
func NewBridge() *Bridge {
	return &Bridge{status: make(chan StatusRecord, defaultStatusQueueDepth)}
}

// Publish enqueues rec for delivery to a consumer of Status. If the queue is
// full, the oldest queued record is dropped to make room; Publish itself
// never blocks.
func (b *Bridge) Publish(rec StatusRecord) {
	for {
		select {
		case b.status <- rec:
			return
		default:
		}
		select {
		case <-b.status:
		default:
		}
	}
}

// Status returns the channel status records are delivered on.
func (b *Bridge) Status() <-chan StatusRecord { return b.status }

// SetUIActive records whether an external UI is currently believed to be
// watching. The router supervisor only calls Publish when this is true,
// mirroring the reference implementation's ui_is_active gate.
func (b *Bridge) SetUIActive(active bool) { b.uiActive.Store(active) }

// UIActive reports the current UI-active flag.
func (b *Bridge) UIActive() bool { return b.uiActive.Load() }

// RequestExit signals that the router should begin a graceful shutdown.
func (b *Bridge) RequestExit() { b.exitRequested.Store(true) }

// ExitRequested reports whether RequestExit has been called.
func (b *Bridge) ExitRequested() bool { return b.exitRequested.Load() }

// deviceSnapshot is the JSON shape of one device in a Snapshot response.
type deviceSnapshot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IP             string `json:"ip"`
	State          string `json:"state"`
	PixelCount     int    `json:"pixel_count"`
	PacketsIn      int64  `json:"packets_in"`
	PacketsOut     int64  `json:"packets_out"`
	PixelsReceived int64  `json:"pixels_received"`
}

// fragmentSnapshot is the JSON shape of one dispatch fragment in a Snapshot
// response.
type fragmentSnapshot struct {
	AddressMask  uint16 `json:"address_mask"`
	DeviceID     string `json:"device_id"`
	StartChannel int    `json:"start_channel"`
	DestIndex    int    `json:"dest_index"`
	PixelCount   int    `json:"pixel_count"`
}

// Snapshot is a point-in-time render of every device's status and every
// dispatch fragment, for an external UI's initial page load. It supplements
// the incremental status feed: a UI that attaches mid-run needs the full
// picture once before it can make sense of the stream of StatusRecords that
// follow.
func Snapshot(devices []*device.Device, table *dispatch.Table, masks []uint16) ([]byte, error) {
	out := struct {
		Devices   []deviceSnapshot   `json:"devices"`
		Fragments []fragmentSnapshot `json:"fragments"`
	}{}

	for _, d := range devices {
		info := d.Info()
		out.Devices = append(out.Devices, deviceSnapshot{
			ID:             info.ID,
			Name:           info.Name,
			IP:             info.IP,
			State:          info.State.String(),
			PixelCount:     info.PixelCount,
			PacketsIn:      info.PacketsIn,
			PacketsOut:     info.PacketsOut,
			PixelsReceived: info.PixelsReceived,
		})
	}

	for _, mask := range masks {
		for _, f := range table.Fragments(mask) {
			out.Fragments = append(out.Fragments, fragmentSnapshot{
				AddressMask:  mask,
				DeviceID:     f.Device.ID,
				StartChannel: f.StartChannel,
				DestIndex:    f.DestIndex,
				PixelCount:   f.PixelCount,
			})
		}
	}

	return json.Marshal(out)
}
