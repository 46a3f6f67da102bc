// Package serve implements "ingen serve": it starts the engine against a
// real driver (PortAudio by default) plus the HTTP status/metrics server,
// and blocks until SIGINT/SIGTERM.
package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ingen-audio/ingen/internal/conf"
	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/driver"
	"github.com/ingen-audio/ingen/internal/ingen/driver/portaudio"
	"github.com/ingen-audio/ingen/internal/ingen/engine"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/httpapi"
	"github.com/ingen-audio/ingen/internal/logging"
	"github.com/ingen-audio/ingen/internal/observability/metrics"
)

// Command returns the "serve" command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine and the status/metrics HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Engine.SampleRate, "sample-rate", viper.GetInt("engine.samplerate"), "driver sample rate in Hz")
	cmd.Flags().IntVar(&settings.Engine.BlockSize, "block-size", viper.GetInt("engine.blocksize"), "driver frames per cycle")
	cmd.Flags().StringVar(&settings.HTTP.Listen, "http-listen", viper.GetString("http.listen"), "status/metrics server listen address")
	return viper.BindPFlags(cmd.Flags())
}

func runServe(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	workers := settings.Engine.WorkerThreads

	m := metrics.New()

	e := engine.New(engine.Config{
		NFrames: settings.Engine.BlockSize,
		Workers: workers,
		// Buffers.*BufferSize are configured in bytes; the factory sizes
		// its tiers in float32 samples.
		Buffers: buffer.Config{
			SmallSamples:  settings.Buffers.SmallBufferSize / 4,
			MediumSamples: settings.Buffers.MediumBufferSize / 4,
			LargeSamples:  settings.Buffers.LargeBufferSize / 4,
			SequenceCap:   256,
			MaxPerTier:    settings.Buffers.MaxBuffersPerSize,
		},
		Metrics:         m,
		ClientQueueSize: settings.Engine.EventRingCapacity,
		RingCapacity:    settings.Engine.EventRingCapacity,
	})
	e.Start()
	defer func() {
		if err := e.Stop(5 * time.Second); err != nil {
			logger.Error("engine stop", "error", err)
		}
	}()

	d := portaudio.New(portaudio.Config{
		SampleRate: float64(settings.Engine.SampleRate),
		BlockSize:  settings.Engine.BlockSize,
	}, e)
	if err := setupDefaultPorts(d); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if err := d.Start(); err != nil {
		return fmt.Errorf("serve: start driver: %w", err)
	}
	defer func() {
		if err := d.Stop(); err != nil {
			logger.Error("driver stop", "error", err)
		}
	}()

	var server *httpapi.Server
	if settings.HTTP.Enabled {
		server = httpapi.New(e, logger)
		go func() {
			if err := server.Start(settings.HTTP.Listen); err != nil {
				logger.Info("http server stopped", "error", err)
			}
		}()
		defer server.Shutdown()
	}

	logger.Info("ingen serve started", "sample_rate", settings.Engine.SampleRate, "block_size", settings.Engine.BlockSize)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")
	return nil
}

// setupDefaultPorts exposes a stereo input and stereo output pair at the
// root graph's boundary, the minimal I/O surface a Driver needs before
// Start can open a stream.
func setupDefaultPorts(d *portaudio.Driver) error {
	names := []struct {
		name string
		dir  graph.Direction
	}{
		{"in_1", graph.DirInput}, {"in_2", graph.DirInput},
		{"out_1", graph.DirOutput}, {"out_2", graph.DirOutput},
	}
	for _, n := range names {
		if _, err := d.AddPort(driver.EnginePort{Name: n.name, Type: graph.PortAudio, Direction: n.dir}); err != nil {
			return err
		}
	}
	return nil
}
