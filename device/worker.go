package device

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flamecast/flamecast/support/fmtutil"
	"github.com/flamecast/flamecast/support/logging"
)

const (
	// dialTimeout bounds a single WebSocket handshake attempt.
	dialTimeout = 5 * time.Second

	// reconnectBackoff is the pause between a failed or dropped connection
	// and the next dial attempt. The worker reconnects forever; there is no
	// backoff growth, matching the reference device driver's fixed retry
	// delay.
	reconnectBackoff = 1 * time.Second

	// writeTimeout bounds a single frame write.
	writeTimeout = 2 * time.Second
)

// sendUpdatesFrame is sent once per connection to tell the display device
// firmware to stop streaming its own unsolicited state frames back at us;
// this router only wants to push, never pull.
const sendUpdatesFrame = `{"sendUpdates":false}`

// Worker owns a Device's WebSocket connection to its physical display
// controller. It dials, reconnects forever on failure, and periodically
// drains the Device's pixel buffer onto the wire at a rate-limited cadence.
//
// A Worker's Run method should be called from its own goroutine and wrapped
// in fault isolation by a supervisor; Worker itself does not recover from
// panics.
type Worker struct {
	// Logger, if not nil, receives connection lifecycle and send-error logs.
	Logger logging.L

	// Port is the TCP port the device's WebSocket control interface listens
	// on. It defaults to 81, the port every supported display device
	// firmware binds to; overriding it is only useful in tests.
	Port int

	dialer *websocket.Dialer
}

// Run drives d's connection lifecycle until ctx is canceled. It never
// returns early on a connection error; it reconnects after reconnectBackoff
// instead.
func (w *Worker) Run(ctx context.Context, d *Device) {
	logger := logging.Must(w.Logger)
	dialer := w.dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}

	port := w.Port
	if port == 0 {
		port = 81
	}
	url := fmt.Sprintf("ws://%s:%d", d.IP, port)

	for {
		if ctx.Err() != nil {
			d.SetState(Disconnected)
			return
		}

		d.SetState(Connecting)
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Warnf("device %q: dial %s failed: %s", d.ID, url, err)
			d.SetState(Disconnected)
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(sendUpdatesFrame)); err != nil {
			logger.Warnf("device %q: initial handshake frame failed: %s", d.ID, err)
			_ = conn.Close()
			d.SetState(Disconnected)
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		d.SetState(Connected)
		logger.Infof("device %q: connected to %s", d.ID, url)

		w.serveConnection(ctx, d, conn)

		_ = conn.Close()
		d.SetState(Disconnected)
		if !sleepOrDone(ctx, reconnectBackoff) {
			return
		}
	}
}

// serveConnection drains inbound frames on conn (discarding them; this
// router never consumes anything the display device sends back) and sends
// outbound pixel frames at d's configured rate, until either the connection
// fails or ctx is canceled.
func (w *Worker) serveConnection(ctx context.Context, d *Device, conn *websocket.Conn) {
	logger := logging.Must(w.Logger)

	readErrC := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErrC <- err
				return
			}
		}
	}()

	interval := frameInterval(d.MaxFps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]byte, 0, 16*1024)
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErrC:
			logger.Warnf("device %q: connection closed: %s", d.ID, err)
			return

		case <-ticker.C:
			if d.TakePendingPixels() == 0 {
				continue
			}

			buf = buf[:0]
			buf = append(buf, `{"setVars":{"pixels":`...)
			buf = fmtutil.AppendCompactPixelArray(buf, d.Buffer.Values())
			buf = append(buf, `}}`...)

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				logger.Warnf("device %q: send failed: %s", d.ID, err)
				d.RecordSendError()
				return
			}
			d.RecordSend()
		}
	}
}

// frameInterval converts a frames-per-second cap into a ticker interval,
// defaulting to DefaultMaxFps's implied period when fps is non-positive.
func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

// sleepOrDone waits for d, returning false if ctx is canceled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
