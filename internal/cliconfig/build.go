package cliconfig

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bft-labs/flightrec/pkg/bytestore"
	"github.com/bft-labs/flightrec/pkg/flightrec"
	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/state"
	"github.com/bft-labs/flightrec/plugins/configwatcher"
)

// archiveOwner is the store owner id used by the runtime.
const archiveOwner = 1

// Build opens the configured outputs and archive and returns a runtime over
// them. The config watcher is attached when Watch is set and cfgFile names
// the config file. The returned func releases everything that was opened.
func Build(cfg Config, cfgFile string, extra ...flightrec.Option) (*flightrec.Runtime, func(), error) {
	zl := Logger()
	logger := log.NewZerologAdapterWithLogger(zl)

	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				zl.Warn().Err(err).Msg("close output")
			}
		}
	}

	sink, err := openSinks(cfg, logger, &closers)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	opts := []flightrec.Option{
		flightrec.WithLogger(logger.With(log.Source(uint16(cfg.SourceID)))),
		flightrec.WithSink(sink),
		flightrec.WithStateRepository(state.NewFileRepository(cfg.StateDir)),
		flightrec.WithEventHandler(&logEvents{log: zl}),
	}

	if cfg.StorePath != "" {
		svc, port, err := OpenArchive(cfg, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() error {
			return errors.Join(port.Sync(), port.Close())
		})
		opts = append(opts, flightrec.WithArchive(svc))
	}

	if cfg.Watch && cfgFile != "" {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.DefaultConfig(cfgFile)))
	}
	opts = append(opts, extra...)

	rt, err := flightrec.New(cfg.RuntimeConfig(), opts...)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("create runtime: %w", err)
	}
	return rt, closeAll, nil
}

// openSinks opens every configured output. With none, frames are discarded.
func openSinks(cfg Config, logger log.Logger, closers *[]func() error) (link.Sink, error) {
	var sinks link.MultiSink

	if cfg.Output != "" {
		fs, err := link.NewFileSink(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		sinks = append(sinks, fs)
		*closers = append(*closers, fs.Close)
	}

	if cfg.SerialDevice != "" {
		sc := link.DefaultSerialConfig(cfg.SerialDevice)
		sc.Baud = cfg.SerialBaud
		port, err := link.OpenSerial(sc)
		if err != nil {
			return nil, fmt.Errorf("open serial: %w", err)
		}
		ss := link.NewSerialSink(port, logger)
		sinks = append(sinks, ss)
		*closers = append(*closers, ss.Close)
	}

	if cfg.MQTTURL != "" {
		ms, err := link.DialMQTT(link.MQTTConfig{URL: cfg.MQTTURL, Topic: cfg.MQTTTopic}, logger)
		if err != nil {
			return nil, fmt.Errorf("dial mqtt: %w", err)
		}
		sinks = append(sinks, ms)
		*closers = append(*closers, ms.Close)
	}

	switch len(sinks) {
	case 0:
		return link.Discard{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// OpenArchive opens the archive store image named by StorePath. Close the
// returned port when done.
func OpenArchive(cfg Config, logger log.Logger) (*bytestore.Service, *bytestore.FilePort, error) {
	sc := cfg.StoreConfig()
	port := bytestore.NewFilePort(cfg.StorePath, sc.MemorySize, sc.MaxChunk)
	svc, err := bytestore.NewService(true, archiveOwner, sc, port, bytestore.WithLogger(logger))
	if err != nil {
		_ = port.Close()
		return nil, nil, fmt.Errorf("open archive %s: %w", cfg.StorePath, err)
	}
	return svc, port, nil
}

// logEvents reports runtime events on the CLI logger.
type logEvents struct {
	flightrec.BaseEventHandler
	log zerolog.Logger
}

func (e *logEvents) OnWindowDrained(ev flightrec.WindowDrainedEvent) {
	e.log.Info().
		Uint32("session", ev.SessionID).
		Int("bytes", ev.WindowLen).
		Uint32("dropped_records", ev.DroppedRecords).
		Bool("incomplete", ev.Incomplete).
		Bool("archived", ev.Archived).
		Dur("took", ev.Duration).
		Msg("window drained")
}

func (e *logEvents) OnLinkError(ev flightrec.LinkErrorEvent) {
	e.log.Warn().Err(ev.Error).Stringer("class", ev.Class).Int("bytes", ev.Bytes).Msg("frame lost")
}
