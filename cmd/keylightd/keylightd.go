package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keylight/keylightd/internal/activity"
	"github.com/keylight/keylightd/internal/configuration"
	"github.com/keylight/keylightd/internal/controller"
	"github.com/keylight/keylightd/internal/ec"
	"github.com/keylight/keylightd/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := configuration.GetConfigFromArgs(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("version", version.BuildVersion).Info("keylightd starting")
	log.WithFields(log.Fields{"timeout": cfg.Controller.Timeout, "brightness": cfg.Controller.Brightness}).Info("configured")

	names := append(activity.DefaultDeviceNames, cfg.DeviceNames...)
	devices, err := activity.FindDevices(activity.DefaultDeviceDir, names)
	if err != nil {
		log.WithError(err).Fatal("failed to scan input devices")
	}
	if len(devices) == 0 {
		log.Fatal("no matching input devices found")
	}
	monitor := activity.NewMonitor(devices)
	defer func() { _ = monitor.Close() }()

	ctrl, err := ec.Open(cfg.ECPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open embedded controller")
	}
	defer func() { _ = ctrl.Close() }()

	metrics := controller.NewMetrics()
	prometheus.MustRegister(metrics)

	c := controller.New(metrics.Commander(ctrl), monitor, metrics, cfg.Controller)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return c.Run(ctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return runMetricsServer(ctx, cfg.MetricsAddr) })
	}

	if err = g.Wait(); err != nil {
		log.WithError(err).Fatal("keylightd failed")
	}
	log.Info("keylightd stopped")
}

func runMetricsServer(ctx context.Context, addr string) error {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	m.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := http.Server{Addr: addr, Handler: m}
	errCh := make(chan error)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
