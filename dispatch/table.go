// Package dispatch maps incoming Art-Net universes to the display devices
// that consume them.
package dispatch

import (
	"github.com/flamecast/flamecast/config"
	"github.com/flamecast/flamecast/device"
)

// Fragment is one slice of a universe routed to a region of a device's pixel
// buffer.
type Fragment struct {
	Device *device.Device

	// StartChannel is the 0-based DMX channel offset into the incoming
	// universe payload where this fragment begins.
	StartChannel int
	// DestIndex is the 0-based offset into Device's pixel buffer where the
	// first produced pixel lands.
	DestIndex int
	// PixelCount is the number of pixels this fragment produces.
	PixelCount int
}

// Table maps an Art-Net address mask to the fragments that consume it. A
// Table is built once at startup from a parsed config.Project and is
// read-only thereafter, so its zero-overhead lookup is safe for concurrent
// use by the receive loop without locking.
type Table struct {
	byMask map[uint16][]Fragment
}

// Build constructs a Table from proj, resolving each fragment's configured
// device ID against devices. devices must contain an entry for every device
// ID referenced by proj; Build panics otherwise, since a dangling fragment
// reference is a configuration-loading bug, not a runtime condition.
func Build(proj *config.Project, devices map[string]*device.Device) *Table {
	t := &Table{byMask: make(map[uint16][]Fragment)}

	for _, cd := range proj.Devices {
		d, ok := devices[cd.ID]
		if !ok {
			panic("dispatch: no device instance for configured id " + cd.ID)
		}
		for _, cf := range cd.Fragments {
			mask := cf.AddressMask()
			t.byMask[mask] = append(t.byMask[mask], Fragment{
				Device:       d,
				StartChannel: cf.StartChannel,
				DestIndex:    cf.DestIndex,
				PixelCount:   cf.PixelCount,
			})
		}
	}
	return t
}

// Dispatch absorbs an incoming ArtDmx payload for addressMask into every
// fragment registered against it. Each fragment may belong to a different
// device, and a device's buffer may be targeted by more than one fragment
// across different universes.
func (t *Table) Dispatch(addressMask uint16, payload []byte) {
	for _, f := range t.byMask[addressMask] {
		n := f.Device.Buffer.Absorb(payload, f.StartChannel, f.DestIndex, f.PixelCount)
		if n > 0 {
			f.Device.RecordAbsorb(n)
		}
	}
}

// Fragments returns the fragments registered for addressMask, or nil if
// none are. The returned slice must not be modified.
func (t *Table) Fragments(addressMask uint16) []Fragment {
	return t.byMask[addressMask]
}

// Len returns the number of distinct address masks with at least one
// registered fragment.
func (t *Table) Len() int { return len(t.byMask) }
