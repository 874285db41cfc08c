package artnet

import (
	"net"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestArtnet(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Artnet Codec")
}

var _ = Describe("CheckHeader", func() {
	It("accepts a valid ArtDmx header", func() {
		data := append([]byte("Art-Net\x00"), 0x00, 0x50)
		op, err := CheckHeader(data)
		Expect(err).ToNot(HaveOccurred())
		Expect(op).To(Equal(OpDMX))
	})

	It("accepts a valid ArtPoll header", func() {
		data := append([]byte("Art-Net\x00"), 0x00, 0x20)
		op, err := CheckHeader(data)
		Expect(err).ToNot(HaveOccurred())
		Expect(op).To(Equal(OpPoll))
	})

	It("rejects a short packet", func() {
		_, err := CheckHeader([]byte("Art-Net"))
		Expect(err).To(MatchError(ErrMalformedPacket))
	})

	It("rejects a bad magic", func() {
		data := append([]byte("Not-Art\x00"), 0x00, 0x50)
		_, err := CheckHeader(data)
		Expect(err).To(MatchError(ErrMalformedPacket))
	})

	It("ignores the protocol version field", func() {
		data := append([]byte("Art-Net\x00"), 0x00, 0x50, 0xFF, 0xFF)
		op, err := CheckHeader(data)
		Expect(err).ToNot(HaveOccurred())
		Expect(op).To(Equal(OpDMX))
	})
})

var _ = Describe("Address mask", func() {
	It("round-trips net/subnet/universe", func() {
		for net8 := uint8(0); net8 < 128; net8 += 7 {
			for subnet := uint8(0); subnet < 16; subnet++ {
				for universe := uint8(0); universe < 16; universe++ {
					mask := EncodeAddress(net8, subnet, universe)
					gotNet, gotSubnet, gotUniverse := DecodeAddress(mask)
					Expect(gotNet).To(Equal(net8))
					Expect(gotSubnet).To(Equal(subnet))
					Expect(gotUniverse).To(Equal(universe))
				}
			}
		}
	})

	It("matches the documented bit layout", func() {
		Expect(EncodeAddress(1, 2, 3)).To(Equal(uint16(1<<8 | 2<<4 | 3)))
	})
})

var _ = Describe("DMXPayload", func() {
	It("extracts address, sequence, and payload", func() {
		data := append([]byte("Art-Net\x00"), 0x00, 0x50)
		data = append(data, 0x00, 0x00) // protocol version
		data = append(data, 0x07)       // sequence
		data = append(data, 0x00)       // physical
		data = append(data, 0x34, 0x12) // address: universe 4, subnet 3, net 0x12
		data = append(data, 0x00, 0x03) // length
		data = append(data, 1, 2, 3, 4, 5, 6)

		mask, seq, payload := DMXPayload(data)
		gotNet, gotSubnet, gotUniverse := DecodeAddress(mask)
		Expect(gotNet).To(Equal(uint8(0x12)))
		Expect(gotSubnet).To(Equal(uint8(3)))
		Expect(gotUniverse).To(Equal(uint8(4)))
		Expect(seq).To(Equal(byte(0x07)))
		Expect(payload).To(Equal([]byte{1, 2, 3, 4, 5, 6}))
	})

	It("returns a nil payload when the packet ends at the header", func() {
		data := append([]byte("Art-Net\x00"), 0x00, 0x50)
		data = append(data, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
		_, _, payload := DMXPayload(data)
		Expect(payload).To(BeEmpty())
	})
})

var _ = Describe("BuildPollReply", func() {
	It("builds a fixed-size datagram with the right fields", func() {
		buf, err := BuildPollReply(net.IPv4(10, 0, 0, 5), 6454, "short", "a longer name", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(buf).To(HaveLen(PollReplySize))

		Expect(buf[0:8]).To(Equal([]byte("Art-Net\x00")))
		Expect(buf[8:10]).To(Equal([]byte{0x00, 0x21}))
		Expect(buf[10:14]).To(Equal([]byte{10, 0, 0, 5}))
		Expect(buf[14:16]).To(Equal([]byte{0x19, 0x36})) // 6454 big-endian
		Expect(buf[26:31]).To(Equal([]byte("short")))
		Expect(buf[44:57]).To(Equal([]byte("a longer name")))
		Expect(buf[208:212]).To(Equal([]byte{10, 0, 0, 5}))
	})

	It("rejects a non-IPv4 address", func() {
		_, err := BuildPollReply(net.ParseIP("::1"), 6454, "", "", "")
		Expect(err).To(HaveOccurred())
	})
})
