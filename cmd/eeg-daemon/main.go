// Command eeg-daemon is the control-plane process: it
// loads pipeline documents from a config directory, exposes the HTTP/SSE/
// WebSocket control surface internal/api implements, and owns the one
// pipeline that may be running at a time via internal/control.ControlPlane.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/api"
	"github.com/elata-labs/eegpipe/internal/config"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/control"
	"github.com/elata-labs/eegpipe/internal/driver"
	"github.com/elata-labs/eegpipe/internal/graph"
	"github.com/elata-labs/eegpipe/internal/logging"
	"github.com/elata-labs/eegpipe/internal/stages"
	"github.com/elata-labs/eegpipe/internal/telemetry"
)

// spiFlags are the optional real-hardware wiring flags. When spiBus is set,
// serve registers a "spi_ads1299" eeg_source driver_type backed by
// internal/driver.OpenSPIBoard instead of only the built-in mock driver.
type spiFlags struct {
	bus      string
	drdyPin  string
	channels int
}

func main() {
	var (
		configDir  string
		listenAddr string
		logLevel   string
		poolBucket int
		spi        spiFlags
	)

	root := &cobra.Command{
		Use:   "eeg-daemon",
		Short: "Runtime for EEG biosignal acquisition and processing pipelines",
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "./pipelines", "directory of pipeline documents (.yaml/.yml/.json)")
	root.PersistentFlags().StringVar(&listenAddr, "listen-addr", constants.DefaultListenAddr, "address the control HTTP API listens on")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	root.PersistentFlags().IntVar(&poolBucket, "pool-bucket-size", 0, "buffers held per memory-pool bucket (0 = internal default)")

	serveCmd := newServeCommand(&configDir, &listenAddr, &logLevel, &poolBucket, &spi)
	serveCmd.Flags().StringVar(&spi.bus, "spi-bus", "", "periph.io SPI bus name (e.g. /dev/spidev0.0); enables the spi_ads1299 driver_type")
	serveCmd.Flags().StringVar(&spi.drdyPin, "spi-drdy-pin", "", "periph.io GPIO pin name wired to the ADC's DRDY line")
	serveCmd.Flags().IntVar(&spi.channels, "spi-channels", 8, "active ADS1299 channel count")

	root.AddCommand(serveCmd)
	root.AddCommand(newValidateCommand(&configDir))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand(configDir, listenAddr, logLevel *string, poolBucket *int, spi *spiFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane and HTTP API and block until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configDir, *listenAddr, parseLogLevel(*logLevel), *poolBucket, *spi)
		},
	}
}

// registerSPIDriver makes driver_type "spi_ads1299" available to eeg_source
// stages, wiring periph.io's SPI/GPIO registries to a real ADS1299-family
// front end. Skipped entirely when --spi-bus is unset, the common case of
// driving only the mock driver in development or CI.
func registerSPIDriver(spi spiFlags, log *logging.Logger) {
	if spi.bus == "" {
		return
	}
	stages.RegisterDriverFactory("spi_ads1299", func() driver.Driver {
		chip := driver.NewADS1299Chip(spi.channels)
		board, err := driver.OpenSPIBoard(spi.bus, spi.drdyPin, chip, log)
		if err != nil {
			log.WithError(err).Error("failed to open spi_ads1299 board", "bus", spi.bus, "drdy_pin", spi.drdyPin)
			return driver.NewMockDriver()
		}
		return board
	})
}

func newValidateCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [id]",
		Short: "Validate one or every pipeline document in config-dir without starting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return validateOne(*configDir, args[0])
			}
			return validateAll(*configDir)
		},
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func validateOne(configDir, id string) error {
	path, err := config.ResolvePath(configDir, id)
	if err != nil {
		return err
	}
	doc, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := config.Validate(doc); err != nil {
		return err
	}
	if _, err := graph.Build(doc.Stages); err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d stages)\n", id, len(doc.Stages))
	return nil
}

func validateAll(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		return err
	}
	failed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := stripPipelineExt(entry.Name())
		if id == "" {
			continue
		}
		if err := validateOne(configDir, id); err != nil {
			fmt.Printf("%s: %v\n", id, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d pipeline document(s) failed validation", failed)
	}
	return nil
}

func stripPipelineExt(name string) string {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return ""
}

// serve wires the control plane, the telemetry registry, and the HTTP API
// together and runs until SIGINT/SIGTERM: construct, listen, wait for a
// signal, tear down.
func serve(ctx context.Context, configDir, listenAddr string, level logging.LogLevel, poolBucket int, spi spiFlags) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	log := logging.NewLogger(logCfg)
	logging.SetDefault(log)

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return &eegpipe.Error{Op: "eeg-daemon.serve", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}

	registerSPIDriver(spi, log)

	promReg := prometheus.NewRegistry()
	metrics := telemetry.NewRegistry(promReg)
	pool := eegpipe.NewMemoryPool(poolBucket)

	cp := control.New(configDir, pool, log, metrics)
	server := api.New(cp, configDir, log, telemetry.Handler(promReg))
	cp.SetBroadcaster(server.Broadcaster())

	httpSrv := &http.Server{
		Addr:    listenAddr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("control API listening", "addr", listenAddr, "config_dir", configDir)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigCh:
		log.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	if _, running := cp.GetState(); running {
		if err := cp.StopPipeline(); err != nil {
			log.WithError(err).Warn("error stopping pipeline during shutdown")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
