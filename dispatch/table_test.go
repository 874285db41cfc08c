package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flamecast/flamecast/config"
	"github.com/flamecast/flamecast/device"
)

func buildTestProject() *config.Project {
	return &config.Project{
		Devices: []config.Device{
			{
				ID:         "strip1",
				IP:         "10.0.0.5",
				PixelCount: 4,
				Fragments: []config.Fragment{
					{Universe: 1, StartChannel: 0, DestIndex: 0, PixelCount: 2},
					{Universe: 2, StartChannel: 0, DestIndex: 2, PixelCount: 2},
				},
			},
			{
				ID:         "strip2",
				IP:         "10.0.0.6",
				PixelCount: 2,
				Fragments: []config.Fragment{
					{Universe: 1, StartChannel: 6, DestIndex: 0, PixelCount: 2},
				},
			},
		},
	}
}

func TestBuildAndDispatchFanOut(t *testing.T) {
	proj := buildTestProject()
	devices := map[string]*device.Device{
		"strip1": device.New("strip1", "", "10.0.0.5", 4, 30),
		"strip2": device.New("strip2", "", "10.0.0.6", 2, 30),
	}

	table := Build(proj, devices)
	require.Equal(t, 2, table.Len())

	payload := []byte{
		10, 20, 30, 40, 50, 60, // pixels 0,1 (universe 1 fragments)
		70, 80, 90, 100, 110, 120, // pixels 2,3 (strip2's universe 1 fragment)
	}
	table.Dispatch(config.Fragment{Universe: 1}.AddressMask(), payload)

	assert.Equal(t, device.PackPixel(10, 20, 30), devices["strip1"].Buffer.Values()[0])
	assert.Equal(t, device.PackPixel(40, 50, 60), devices["strip1"].Buffer.Values()[1])
	assert.Equal(t, device.PackPixel(70, 80, 90), devices["strip2"].Buffer.Values()[0])
	assert.Equal(t, device.PackPixel(100, 110, 120), devices["strip2"].Buffer.Values()[1])

	assert.Equal(t, int64(1), devices["strip1"].Info().PacketsIn)
	assert.Equal(t, int64(2), devices["strip1"].Info().PixelsReceived)

	payload2 := []byte{1, 2, 3, 4, 5, 6}
	table.Dispatch(config.Fragment{Universe: 2}.AddressMask(), payload2)
	assert.Equal(t, device.PackPixel(1, 2, 3), devices["strip1"].Buffer.Values()[2])
	assert.Equal(t, device.PackPixel(4, 5, 6), devices["strip1"].Buffer.Values()[3])
}

func TestDispatchUnknownMaskIsNoop(t *testing.T) {
	proj := buildTestProject()
	devices := map[string]*device.Device{
		"strip1": device.New("strip1", "", "10.0.0.5", 4, 30),
		"strip2": device.New("strip2", "", "10.0.0.6", 2, 30),
	}
	table := Build(proj, devices)

	table.Dispatch(config.Fragment{Universe: 9}.AddressMask(), []byte{1, 2, 3})
	assert.Equal(t, int64(0), devices["strip1"].Info().PacketsIn)
}

func TestBuildPanicsOnDanglingDeviceReference(t *testing.T) {
	proj := &config.Project{
		Devices: []config.Device{{ID: "ghost", PixelCount: 1}},
	}
	assert.Panics(t, func() {
		Build(proj, map[string]*device.Device{})
	})
}
