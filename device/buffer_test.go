package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackPixelBasic(t *testing.T) {
	assert.Equal(t, float32(0), PackPixel(0, 0, 0))
	assert.InDelta(t, float32(255)/256.0, PackPixel(0, 0, 255), 1e-6)
}

func TestPackPixelFoldsAboveThreshold(t *testing.T) {
	// r=1,g=0,b=0 packs to 0x010000 = 65536, divided by 256 is 256.0,
	// which is below the fold threshold and stays positive.
	assert.InDelta(t, float32(256), PackPixel(1, 0, 0), 1e-6)

	// r=255,g=255,b=255 packs to 0xFFFFFF = 16777215, divided by 256 is
	// ~65535.996, which folds to ~-0.004.
	got := PackPixel(255, 255, 255)
	assert.InDelta(t, float32(-0.00390625), got, 1e-6)
}

func TestBufferAbsorbWritesContiguousRun(t *testing.T) {
	b := NewBuffer(4)
	payload := []byte{10, 20, 30, 40, 50, 60}

	n := b.Absorb(payload, 0, 1, 2)
	assert.Equal(t, 2, n)

	assert.Equal(t, float32(0), b.Values()[0])
	assert.Equal(t, PackPixel(10, 20, 30), b.Values()[1])
	assert.Equal(t, PackPixel(40, 50, 60), b.Values()[2])
	assert.Equal(t, float32(0), b.Values()[3])
}

func TestBufferAbsorbTruncatesAtBufferBoundary(t *testing.T) {
	b := NewBuffer(2)
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}

	n := b.Absorb(payload, 0, 1, 2)
	assert.Equal(t, 1, n, "only one pixel fits before the buffer ends")
}

func TestBufferAbsorbTruncatesAtPayloadBoundary(t *testing.T) {
	b := NewBuffer(10)
	payload := []byte{1, 2, 3, 4} // one whole pixel plus one stray byte

	n := b.Absorb(payload, 0, 0, 5)
	assert.Equal(t, 1, n)
}

func TestBufferAbsorbIgnoresOutOfRangeDestIndex(t *testing.T) {
	b := NewBuffer(4)
	payload := []byte{1, 2, 3}

	assert.Equal(t, 0, b.Absorb(payload, 0, 10, 1))
	assert.Equal(t, 0, b.Absorb(payload, 0, -1, 1))
}
