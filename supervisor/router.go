// Package supervisor wires configuration, the Art-Net listener, the
// dispatch table, and every device worker into one running router, and
// drives the periodic status tick the control plane feeds on.
package supervisor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/flamecast/flamecast/artnet"
	"github.com/flamecast/flamecast/config"
	"github.com/flamecast/flamecast/controlplane"
	"github.com/flamecast/flamecast/device"
	"github.com/flamecast/flamecast/dispatch"
	"github.com/flamecast/flamecast/support/logging"
	"github.com/flamecast/flamecast/support/network"
)

// Router owns every long-lived component of a single running instance: the
// Art-Net receiver, the optional announce beacon, the dispatch table, and
// one Worker goroutine per configured device.
type Router struct {
	// Logger, if not nil, is used by every owned component.
	Logger logging.L

	// Bridge, if not nil, receives periodic StatusRecords and is consulted
	// for the exit-requested flag.
	Bridge *controlplane.Bridge

	proj    *config.Project
	devices map[string]*device.Device
	table   *dispatch.Table

	receiver *artnet.Receiver
	beacon   *artnet.Beacon

	masks []uint16

	startTime time.Time
}

// New builds a Router from proj. It allocates every device's pixel buffer
// and the dispatch table, and binds the Art-Net UDP socket, but does not yet
// start any goroutines; call Run for that.
func New(proj *config.Project, logger logging.L) (*Router, error) {
	r := &Router{
		Logger:  logger,
		proj:    proj,
		devices: make(map[string]*device.Device, len(proj.Devices)),
	}

	for _, cd := range proj.Devices {
		r.devices[cd.ID] = device.New(cd.ID, cd.Name, cd.IP, cd.PixelCount, cd.MaxFps)
	}

	r.table = dispatch.Build(proj, r.devices)
	r.masks = maskSet(proj)

	pollReply, err := artnet.BuildPollReply(
		resolveListenIP(proj.System.IngressAddr), uint16(proj.System.IngressPort),
		"flamecast", "flamecast Art-Net router", "")
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: failed to build poll reply")
	}

	r.receiver = &artnet.Receiver{
		Logger:    logger,
		PollReply: pollReply,
	}
	if err := r.receiver.Listen(proj.System.IngressAddr, proj.System.IngressPort); err != nil {
		return nil, errors.Wrap(err, "supervisor: failed to bind Art-Net listener")
	}

	if proj.System.AnnounceIntervalMs > 0 && proj.System.BroadcastAddr != "" {
		r.beacon = &artnet.Beacon{
			Logger:   logger,
			Payload:  pollReply,
			Interval: time.Duration(proj.System.AnnounceIntervalMs) * time.Millisecond,
		}
	}

	return r, nil
}

// Devices returns the router's device instances, keyed by configured ID.
func (r *Router) Devices() map[string]*device.Device { return r.devices }

// Table returns the router's dispatch table.
func (r *Router) Table() *dispatch.Table { return r.table }

// Masks returns every distinct Art-Net address mask this router's config
// has at least one fragment registered against.
func (r *Router) Masks() []uint16 { return r.masks }

// Run starts the Art-Net receive loop, every device worker, the optional
// announce beacon, and the status tick loop, then blocks until ctx is
// canceled or the control-plane bridge's exit flag is set.
func (r *Router) Run(ctx context.Context) error {
	r.startTime = time.Now()
	logger := logging.Must(r.Logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverInto(logger, "artnet receiver")
		dispatch := func(addressMask uint16, _ byte, payload []byte) {
			r.table.Dispatch(addressMask, payload)
		}
		if err := r.receiver.Serve(dispatch); err != nil {
			logger.Errorf("supervisor: receiver exited: %s", err)
		}
	}()

	if r.beacon != nil {
		sender, err := dialBroadcast(r.proj.System.BroadcastAddr)
		if err != nil {
			logger.Warnf("supervisor: announce beacon disabled, dial failed: %s", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sender.Close()
				defer recoverInto(logger, "announce beacon")
				r.beacon.Run(sender)
			}()
		}
	}

	worker := &device.Worker{Logger: r.Logger}
	for _, d := range r.devices {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer recoverInto(logger, "device worker "+d.ID)
			worker.Run(ctx, d)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.statusLoop(ctx)
		// statusLoop also returns when the bridge's exit flag is set; cancel
		// so Run shuts everything down in that case too.
		cancel()
	}()

	<-ctx.Done()
	r.receiver.Stop()
	if r.beacon != nil {
		r.beacon.Stop()
	}
	wg.Wait()
	return nil
}

// statusLoop periodically samples every device's Info, publishes it to the
// control-plane bridge when a UI is believed active, and resets counters
// regardless of whether anyone is listening — mirroring the reference
// router's always-reset, conditionally-publish status tick.
func (r *Router) statusLoop(ctx context.Context) {
	interval := time.Duration(r.proj.System.StatusUpdateIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tickStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(tickStart).Seconds()
			tickStart = now

			publish := r.Bridge != nil && r.Bridge.UIActive()
			for _, d := range r.devices {
				info := d.Info()
				if publish && elapsed > 0 {
					r.Bridge.Publish(controlplane.StatusRecord{
						Name:      info.Name,
						IP:        info.IP,
						MaxFps:    d.MaxFps,
						InPps:     float64(info.PacketsIn) / elapsed,
						OutFps:    float64(info.PacketsOut) / elapsed,
						Connected: info.State == device.Connected,
					})
				}
				d.ResetCounters()
			}

			if r.Bridge != nil && r.Bridge.ExitRequested() {
				return
			}
		}
	}
}

func maskSet(proj *config.Project) []uint16 {
	seen := make(map[uint16]struct{})
	var masks []uint16
	for _, d := range proj.Devices {
		for _, f := range d.Fragments {
			m := f.AddressMask()
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				masks = append(masks, m)
			}
		}
	}
	return masks
}

func resolveListenIP(addr string) net.IP {
	ip := net.ParseIP(addr)
	if ip == nil || ip.Equal(net.IPv4zero) {
		return net.IPv4(127, 0, 0, 1)
	}
	return ip
}

func dialBroadcast(addr string) (network.DatagramSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetWriteBuffer(network.MaxUDPSize); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return network.UDPDatagramSender(conn), nil
}

// recoverInto logs and swallows a panic in the calling goroutine, so a
// single misbehaving device or listener cannot take down the whole router.
func recoverInto(logger logging.L, label string) {
	if p := recover(); p != nil {
		logger.Errorf("supervisor: recovered panic in %s: %v", label, p)
	}
}
