// Package artnet implements the slice of the Art-Net 4 wire protocol this
// router needs: header validation, the 16-bit (net, subnet, universe)
// address, and the ArtPollReply discovery datagram.
//
// Adapted from the byte-offset layout in ArtnetUtils.py (itself adapted
// from the StupidArtnet project) and from the header-check style used by
// the retrieved pack's own Art-Net readers.
package artnet

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// Port is the standard Art-Net UDP control port.
const Port = 6454

// MaxPacketSize is the largest datagram the receiver will read.
const MaxPacketSize = 2048

// header is the fixed 8-byte Art-Net magic that precedes every packet.
var header = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

// Opcode identifies an Art-Net packet type. On the wire it is a
// little-endian uint16.
type Opcode uint16

const (
	// OpDMX carries a universe's DMX payload.
	OpDMX Opcode = 0x5000
	// OpPoll is a discovery request.
	OpPoll Opcode = 0x2000
	// OpPollReply is a discovery response.
	OpPollReply Opcode = 0x2100
)

// headerLen is the length of the fixed header common to every packet this
// router inspects: 8-byte magic + 2-byte opcode.
const headerLen = 10

// dmxPayloadOffset is the byte offset at which an ArtDmx packet's DMX
// payload begins.
const dmxPayloadOffset = 18

// addressOffset is the byte offset of the little-endian (subnet,universe)
// and net address bytes within an ArtDmx packet.
const addressOffset = 14

// sequenceOffset is the byte offset of the sequence number within an
// ArtDmx packet.
const sequenceOffset = 12

// ErrMalformedPacket is returned when a datagram fails header validation.
var ErrMalformedPacket = errors.New("artnet: malformed packet header")

// CheckHeader validates the 8-byte "Art-Net\0" magic and extracts the
// opcode. It does not validate the protocol version field (offsets 10-11);
// any protocol version is accepted, matching the specification's leniency
// requirement.
func CheckHeader(data []byte) (Opcode, error) {
	if len(data) < headerLen {
		return 0, ErrMalformedPacket
	}
	for i, b := range header {
		if data[i] != b {
			return 0, ErrMalformedPacket
		}
	}
	return Opcode(binary.LittleEndian.Uint16(data[8:10])), nil
}

// DMXPayload extracts the address mask and DMX payload from a datagram
// already confirmed to carry OpDMX. It does not copy the payload; the
// returned slice aliases data.
func DMXPayload(data []byte) (addressMask uint16, sequence byte, payload []byte) {
	addressMask = binary.LittleEndian.Uint16(data[addressOffset : addressOffset+2])
	sequence = data[sequenceOffset]
	if len(data) <= dmxPayloadOffset {
		return addressMask, sequence, nil
	}
	return addressMask, sequence, data[dmxPayloadOffset:]
}

// EncodeAddress packs (net, subnet, universe) into the 16-bit Art-Net
// address mask: bits 0..3 universe, bits 4..7 subnet, bits 8..14 net, bit
// 15 reserved zero.
func EncodeAddress(net, subnet, universe uint8) uint16 {
	return uint16(net&0x7F)<<8 | uint16(subnet&0x0F)<<4 | uint16(universe&0x0F)
}

// DecodeAddress unpacks a 16-bit Art-Net address mask into (net, subnet,
// universe). It is the exact inverse of EncodeAddress for all valid inputs.
func DecodeAddress(mask uint16) (net, subnet, universe uint8) {
	universe = uint8(mask & 0x0F)
	subnet = uint8((mask >> 4) & 0x0F)
	net = uint8((mask >> 8) & 0x7F)
	return
}

// PollReplySize is the fixed length of an ArtPollReply datagram.
const PollReplySize = 239

// BuildPollReply constructs a 239-byte ArtPollReply datagram advertising
// listenIP:listenPort as this router's control address. shortName and
// longName are truncated and zero-padded to 18 and 64 bytes respectively;
// nodeReport is zero-padded to 64 bytes. All other fields are left zero,
// which is legal per the specification.
func BuildPollReply(listenIP net.IP, listenPort uint16, shortName, longName, nodeReport string) ([]byte, error) {
	ip4 := listenIP.To4()
	if ip4 == nil {
		return nil, errors.Errorf("artnet: listen IP %q is not a valid IPv4 address", listenIP)
	}

	buf := make([]byte, PollReplySize)
	copy(buf[0:8], header[:])
	binary.LittleEndian.PutUint16(buf[8:10], uint16(OpPollReply))
	copy(buf[10:14], ip4)
	binary.BigEndian.PutUint16(buf[14:16], listenPort)

	copy(buf[26:26+18], padded(shortName, 18))
	copy(buf[44:44+64], padded(longName, 64))
	copy(buf[108:108+64], padded(nodeReport, 64))

	// BindIP, same as the listen IPv4 address.
	copy(buf[208:212], ip4)

	return buf, nil
}

func padded(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
