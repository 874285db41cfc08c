package artnet

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReceiverDispatchesArtDMX(t *testing.T) {
	r := &Receiver{}
	require.NoError(t, r.Listen("127.0.0.1", 0))
	defer r.Stop()

	received := make(chan uint16, 1)
	go func() {
		_ = r.Serve(func(addressMask uint16, sequence byte, payload []byte) {
			received <- addressMask
		})
	}()

	conn, err := net.DialUDP("udp4", nil, r.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	packet := append([]byte("Art-Net\x00"), 0x00, 0x50)
	packet = append(packet, 0x00, 0x00, 0x01, 0x00, 0x05, 0x00, 0x02, 0x00)
	packet = append(packet, make([]byte, 6)...)
	_, err = conn.Write(packet)
	require.NoError(t, err)

	select {
	case mask := <-received:
		require.Equal(t, uint16(5), mask)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestReceiverAnswersArtPoll(t *testing.T) {
	r := &Receiver{PollReply: []byte("fake-poll-reply")}
	require.NoError(t, r.Listen("127.0.0.1", 0))
	defer r.Stop()

	go func() { _ = r.Serve(func(uint16, byte, []byte) {}) }()

	conn, err := net.DialUDP("udp4", nil, r.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	packet := append([]byte("Art-Net\x00"), 0x00, 0x20)
	_, err = conn.Write(packet)
	require.NoError(t, err)

	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "fake-poll-reply", string(buf[:n]))
}

func TestReceiverDropsMalformedPackets(t *testing.T) {
	r := &Receiver{}
	require.NoError(t, r.Listen("127.0.0.1", 0))
	defer r.Stop()

	called := make(chan struct{}, 1)
	go func() {
		_ = r.Serve(func(uint16, byte, []byte) { called <- struct{}{} })
	}()

	conn, err := net.DialUDP("udp4", nil, r.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not an art-net packet"))
	require.NoError(t, err)

	select {
	case <-called:
		t.Fatal("dispatch should not be called for a malformed packet")
	case <-time.After(200 * time.Millisecond):
	}
}
