package artnet

import (
	"net"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/flamecast/flamecast/support/bufferpool"
	"github.com/flamecast/flamecast/support/logging"
)

// DispatchFunc is invoked once, synchronously, for every validly-headered
// ArtDmx packet. The receiver does not retain or copy payload beyond this
// call; implementations must finish absorbing it before returning.
type DispatchFunc func(addressMask uint16, sequence byte, payload []byte)

// Receiver owns a single UDP socket bound to a configured address and port.
// It dispatches ArtDmx packets to a callback and answers ArtPoll requests
// with a precomputed ArtPollReply.
//
// Receiver is not safe for concurrent use beyond the documented
// Listen/Serve/Stop lifecycle.
type Receiver struct {
	// Logger, if not nil, receives read-error and poll-reply failure logs.
	// Dropped packets are not logged.
	Logger logging.L

	// PollReply is the precomputed datagram sent in response to ArtPoll.
	PollReply []byte

	// TrackSequence enables the optional per-address_mask sequence-gap
	// filter described in the specification. It defaults to disabled,
	// matching the reference behavior of processing every validly-headered
	// ArtDmx packet.
	TrackSequence bool

	conn *net.UDPConn
	pool *bufferpool.Pool

	seqMu  sync.Mutex
	lastSeq map[uint16]byte

	stopC chan struct{}
	doneC chan struct{}
}

// Listen binds the receiver's UDP socket. The socket is opened with
// net.ListenUDP's defaults; SO_REUSEADDR is not set. The caller must call
// Serve to begin reading, and Stop to shut down.
func (r *Receiver) Listen(addr string, port int) error {
	udpAddr := &net.UDPAddr{IP: net.ParseIP(addr), Port: port}
	if udpAddr.IP == nil {
		udpAddr.IP = net.IPv4zero
	}

	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return errors.Wrapf(err, "artnet: failed to bind UDP socket on %s", udpAddr)
	}

	r.conn = conn
	r.pool = &bufferpool.Pool{Size: MaxPacketSize}
	r.stopC = make(chan struct{})
	r.doneC = make(chan struct{})
	if r.TrackSequence {
		r.lastSeq = make(map[uint16]byte)
	}
	return nil
}

// LocalAddr returns the receiver's bound local address.
func (r *Receiver) LocalAddr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Serve reads datagrams until Stop is called, dispatching each ArtDmx
// packet to dispatch and replying to each ArtPoll. Serve blocks until the
// socket is closed by Stop; it then returns nil.
func (r *Receiver) Serve(dispatch DispatchFunc) error {
	defer close(r.doneC)
	logger := logging.Must(r.Logger)

	for {
		buf := r.pool.Get()
		n, addr, err := r.conn.ReadFromUDP(buf.Bytes())
		if err != nil {
			buf.Release()
			select {
			case <-r.stopC:
				return nil
			default:
			}
			if isClosedConnError(err) {
				return nil
			}
			logger.Warnf("artnet: read error: %s", err)
			continue
		}

		data := buf.Bytes()[:n]
		r.handlePacket(logger, data, addr, dispatch)
		buf.Release()
	}
}

func (r *Receiver) handlePacket(logger logging.L, data []byte, addr *net.UDPAddr, dispatch DispatchFunc) {
	opcode, err := CheckHeader(data)
	if err != nil {
		// MalformedPacket: drop silently, per the specification.
		return
	}

	switch opcode {
	case OpDMX:
		if len(data) < addressOffset+2 {
			// Too short to carry the address field: drop silently.
			return
		}
		addressMask, seq, payload := DMXPayload(data)
		if r.TrackSequence && r.sequenceDropped(addressMask, seq) {
			return
		}
		dispatch(addressMask, seq, payload)

	case OpPoll:
		if r.PollReply == nil {
			return
		}
		if _, err := r.conn.WriteToUDP(r.PollReply, addr); err != nil {
			logger.Warnf("artnet: failed to send poll reply to %s: %s", addr, err)
		}

	default:
		// Unknown opcode: drop.
	}
}

// sequenceDropped implements the optional per-address_mask sequence-gap
// filter: a packet is dropped when new_seq != 0 and new_seq <= old_seq and
// (old_seq - new_seq) <= 0x80, so wraparound and large gaps still pass.
func (r *Receiver) sequenceDropped(addressMask uint16, newSeq byte) bool {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()

	old, ok := r.lastSeq[addressMask]
	r.lastSeq[addressMask] = newSeq
	if !ok || newSeq == 0 {
		return false
	}
	if newSeq <= old && (old-newSeq) <= 0x80 {
		return true
	}
	return false
}

// Stop closes the receiver's socket, causing any blocked Serve call to
// return, and waits for it to exit.
func (r *Receiver) Stop() error {
	if r.conn == nil {
		return nil
	}
	close(r.stopC)
	err := r.conn.Close()
	<-r.doneC
	return err
}

// isClosedConnError reports whether err is the expected result of a Close
// call racing a blocked read, which Go's net package does not expose as a
// sentinel error.
func isClosedConnError(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
