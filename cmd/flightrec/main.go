package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/flightrec/internal/cliconfig"
	"github.com/bft-labs/flightrec/pkg/flightrec"
)

const helpDescription = `
Run the current-control diagnostic recorder.

A tick loop steps the current loop and publishes a sample every period. The
slow loop records samples into a capture ring, closes the window once the
trigger fires and the post-trigger budget is spent, then streams the window
over the link alongside periodic PDO frames.

Highlights:
  - Pre- and post-trigger windows with period/subtick timestamps.
  - LOG traffic paced by a byte budget; PDO frames always go first.
  - Outputs to a file, a serial port, an MQTT broker or all three.
  - Optional archive store keeps every drained window on disk.
`

var exampleUsage = strings.TrimSpace(`
  flightrec --output capture.bin --trigger-after 500 --once
  flightrec --serial /dev/ttyUSB0 --mqtt-url mqtt://localhost:1883 --watch
  flightrec decode capture.bin
  flightrec console --trigger-level 3.5
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	runE := func(cmd *cobra.Command, args []string) error {
		cfgFile, err := loadConfig(cmd, &cfg, cfgPath)
		if err != nil {
			return err
		}
		log = cliconfig.Logger()
		log.Info().Interface("config", cfg).Msg("configuration")

		rt, closeOutputs, err := cliconfig.Build(cfg, cfgFile)
		if err != nil {
			return err
		}
		defer closeOutputs()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		if err := rt.Start(cmd.Context()); err != nil {
			return fmt.Errorf("start runtime: %w", err)
		}

		// Wait for signal or completion
		select {
		case <-sigCh:
			log.Info().Msg("received signal, stopping...")
		case <-rt.Done():
			if rt.Status() == flightrec.StateCrashed {
				return fmt.Errorf("runtime crashed")
			}
		}

		if err := rt.Stop(); err != nil {
			return fmt.Errorf("stop runtime: %w", err)
		}
		stats := rt.Snapshot()
		log.Info().
			Uint64("windows", stats.WindowsDrained).
			Uint64("frames", stats.FramesSent).
			Uint64("bytes", stats.BytesSent).
			Uint64("link_errors", stats.LinkErrors).
			Msg("stopped")
		return nil
	}

	root := &cobra.Command{
		Use:     "flightrec",
		Short:   "Capture and stream current-loop diagnostics",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE:    runE,
	}

	f := root.PersistentFlags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.flightrec/config.toml)")

	f.IntVar(&cfg.CaptureBytes, "capture-bytes", cfg.CaptureBytes, "capture ring size in bytes")
	f.IntVar(&cfg.Pretrigger, "pretrigger", cfg.Pretrigger, "bytes kept before the trigger")
	f.IntVar(&cfg.Posttrigger, "posttrigger", cfg.Posttrigger, "bytes recorded after the trigger")
	f.IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "samples the tick loop may run ahead of the recorder")
	f.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "control period")
	f.DurationVar(&cfg.SlowInterval, "slow", cfg.SlowInterval, "slow loop period")

	f.IntVar(&cfg.BudgetStep, "budget-step", cfg.BudgetStep, "LOG bytes granted per tick")
	f.IntVar(&cfg.BudgetMax, "budget-max", cfg.BudgetMax, "LOG budget ceiling in bytes")
	f.IntVar(&cfg.MaxFrameBytes, "max-frame", cfg.MaxFrameBytes, "largest frame sent on the link")
	f.IntVar(&cfg.PDOEvery, "pdo-every", cfg.PDOEvery, "send a PDO frame every N ticks (0 disables)")
	f.IntVar(&cfg.FramesPerSlot, "frames-per-slot", cfg.FramesPerSlot, "frames moved to the link per slow period")

	f.IntVar(&cfg.SourceID, "source-id", cfg.SourceID, "source id stamped on records")
	f.StringVar(&cfg.RecordType, "record-type", cfg.RecordType, "record type for samples (CTRL, ADC_RAW, SLOW_MEAS)")
	f.StringVar(&cfg.Fields, "fields", cfg.Fields, "comma separated sample fields to pack (empty records the raw sample)")
	f.BoolVar(&cfg.CRC, "crc", cfg.CRC, "append a CRC-32 to every record")

	f.IntVar(&cfg.TriggerAfter, "trigger-after", cfg.TriggerAfter, "trigger this many periods after arming (0 disables)")
	f.Float64Var(&cfg.TriggerLevel, "trigger-level", cfg.TriggerLevel, "trigger when |measured current| reaches this level (0 disables)")
	f.Float64Var(&cfg.Reference, "reference", cfg.Reference, "initial current reference in amps")

	f.StringVar(&cfg.Output, "output", cfg.Output, "append LOG frames to this file")
	f.StringVar(&cfg.SerialDevice, "serial", cfg.SerialDevice, "serial device carrying PDO and LOG frames")
	f.IntVar(&cfg.SerialBaud, "baud", cfg.SerialBaud, "serial baud rate")
	f.StringVar(&cfg.MQTTURL, "mqtt-url", cfg.MQTTURL, "MQTT broker URL")
	f.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic under the URL prefix")

	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json (default: $HOME/.flightrec)")
	f.StringVar(&cfg.StorePath, "store", cfg.StorePath, "archive store image (empty disables archiving)")
	f.IntVar(&cfg.StoreSize, "store-size", cfg.StoreSize, "archive store size in bytes")
	f.IntVar(&cfg.StoreChunk, "store-chunk", cfg.StoreChunk, "archive store transfer chunk")
	f.IntVar(&cfg.StoreRetries, "store-retries", cfg.StoreRetries, "retries per archive chunk")
	f.IntVar(&cfg.StoreDegradeThreshold, "store-degrade-threshold", cfg.StoreDegradeThreshold, "consecutive errors before the archive degrades")
	f.DurationVar(&cfg.StoreRetryDelay, "store-retry-delay", cfg.StoreRetryDelay, "delay between archive retries")
	for _, name := range []string{"store-chunk", "store-retries", "store-degrade-threshold", "store-retry-delay"} {
		if err := f.MarkHidden(name); err != nil {
			log.Info().Err(err).Str("flag", name).Msg("failed to hide flag")
		}
	}

	f.BoolVar(&cfg.Once, "once", cfg.Once, "exit after the first drained window")
	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload tuning keys when the config file changes")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the recorder (same as the bare command)",
			Args:  cobra.NoArgs,
			RunE:  runE,
		},
		newDecodeCmd(),
		newSelfTestCmd(&cfg, &cfgPath),
		newConsoleCmd(&cfg, &cfgPath),
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("flightrec")
		os.Exit(1)
	}
}

// loadConfig layers the config file, then FLIGHTREC_* variables, under the
// flags set on the command line, and validates the result. It returns the
// config file path in use.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}

	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := cliconfig.SetLogLevel(cfg.LogLevel); err != nil {
		return "", err
	}
	return cfgFile, nil
}
