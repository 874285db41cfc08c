package device

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deviceOnlineGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flamecast_device_online",
		Help: "1 if a device's worker is currently connected, else 0.",
	},
		[]string{"id"})

	devicePixelCountGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flamecast_device_pixel_count",
		Help: "Configured pixel buffer size for a device.",
	},
		[]string{"id"})

	devicePacketsInTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flamecast_device_packets_in_total",
		Help: "Count of Art-Net packets absorbed for a device.",
	},
		[]string{"id"})

	devicePacketsOutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flamecast_device_packets_out_total",
		Help: "Count of WebSocket frames sent to a device.",
	},
		[]string{"id"})

	devicePixelsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flamecast_device_pixels_received_total",
		Help: "Count of pixels absorbed for a device.",
	},
		[]string{"id"})

	deviceSendErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flamecast_device_send_errors_total",
		Help: "Count of errors sending a frame to a device's WebSocket connection.",
	},
		[]string{"id"})
)

// RegisterMonitoring registers this package's metrics with reg. It should be
// called once, at startup.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		deviceOnlineGauge,
		devicePixelCountGauge,
		devicePacketsInTotal,
		devicePacketsOutTotal,
		devicePixelsReceivedTotal,
		deviceSendErrorsTotal,
	)
}

// reportState updates the online gauge and pixel count gauge for d. Counters
// are cumulative and are advanced incrementally by reportSend/reportAbsorb
// instead, since Prometheus counters must never decrease.
func reportState(d *Device) {
	online := 0.0
	if d.State() == Connected {
		online = 1.0
	}
	deviceOnlineGauge.WithLabelValues(d.ID).Set(online)
	devicePixelCountGauge.WithLabelValues(d.ID).Set(float64(d.Buffer.Len()))
}

func reportAbsorb(d *Device, pixels int) {
	devicePacketsInTotal.WithLabelValues(d.ID).Inc()
	devicePixelsReceivedTotal.WithLabelValues(d.ID).Add(float64(pixels))
}

func reportSend(d *Device) {
	devicePacketsOutTotal.WithLabelValues(d.ID).Inc()
}

func reportSendError(d *Device) {
	deviceSendErrorsTotal.WithLabelValues(d.ID).Inc()
}
