// Command flamecastd listens for Art-Net and routes incoming DMX universes
// to a fleet of WebSocket-controlled LED display devices.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/flamecast/flamecast/config"
	"github.com/flamecast/flamecast/controlplane"
	"github.com/flamecast/flamecast/device"
	"github.com/flamecast/flamecast/procmanager"
	"github.com/flamecast/flamecast/support/logging"
)

// snapshotHandler serves the control plane's point-in-time device and
// dispatch-fragment snapshot for a UI attaching mid-run.
func snapshotHandler(mgr *procmanager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		router := mgr.Router()
		if router == nil {
			http.Error(w, "router not running", http.StatusServiceUnavailable)
			return
		}

		devices := make([]*device.Device, 0, len(router.Devices()))
		for _, d := range router.Devices() {
			devices = append(devices, d)
		}

		raw, err := controlplane.Snapshot(devices, router.Table(), router.Masks())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}
}

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "flamecast.toml", "path to the project TOML config file")
		metricsAddr = pflag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
		debug       = pflag.BoolP("debug", "d", false, "enable debug logging")
	)
	pflag.Parse()

	logger, err := logging.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flamecastd: failed to initialize logger: %s\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *metricsAddr, logger); err != nil {
		logger.Errorf("flamecastd: %s", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string, logger logging.L) error {
	proj, err := config.Load(configPath)
	if err != nil {
		return err
	}

	device.RegisterMonitoring(prometheus.DefaultRegisterer)

	bridge := controlplane.NewBridge()
	mgr := &procmanager.Manager{Logger: logger, Bridge: bridge}

	if err := mgr.Start(proj); err != nil {
		return err
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/snapshot", snapshotHandler(mgr))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warnf("flamecastd: metrics server exited: %s", err)
			}
		}()
		logger.Infof("flamecastd: serving metrics and control-plane snapshot on %s", metricsAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Infof("flamecastd: running; listening for Art-Net on %s:%d", proj.System.IngressAddr, proj.System.IngressPort)
	<-ctx.Done()

	logger.Infof("flamecastd: shutting down")
	mgr.Stop()
	return nil
}
