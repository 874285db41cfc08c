package artnet

import (
	"time"

	"github.com/flamecast/flamecast/support/logging"
	"github.com/flamecast/flamecast/support/network"
)

// Beacon periodically broadcasts a precomputed ArtPollReply datagram so that
// control-plane tooling on the network can discover this router without
// sending an explicit ArtPoll. It is an optional supplement to the ArtPoll
// responder in Receiver; routers that only want request/response discovery
// can leave a Beacon unused.
//
// Beacon is not safe for concurrent use beyond the documented Run/Stop
// lifecycle.
type Beacon struct {
	// Logger, if not nil, is the Logger status is reported to.
	Logger logging.L

	// Payload is the datagram broadcast on each tick, typically the output
	// of BuildPollReply.
	Payload []byte

	// Interval is the time between broadcasts. Run returns immediately if
	// Interval is <= 0.
	Interval time.Duration

	stopC chan struct{}
	doneC chan struct{}
}

// Run broadcasts Payload through w every Interval until Stop is called. Run
// blocks until stopped; call it in its own goroutine.
func (b *Beacon) Run(w network.DatagramSender) {
	b.stopC = make(chan struct{})
	b.doneC = make(chan struct{})
	defer close(b.doneC)

	if b.Interval <= 0 {
		return
	}

	logger := logging.Must(b.Logger)
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopC:
			return
		case <-ticker.C:
			if err := w.SendDatagram(b.Payload); err != nil {
				logger.Warnf("artnet: beacon broadcast failed: %s", err)
			}
		}
	}
}

// Stop halts a running Beacon and waits for Run to return. Stop on a Beacon
// whose Run was never called returns immediately.
func (b *Beacon) Stop() {
	if b.stopC == nil {
		return
	}
	close(b.stopC)
	<-b.doneC
}
