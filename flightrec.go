// Package flightrec runs the current-control diagnostic recorder configured
// the same way as the flightrec command.
//
// Example usage:
//
//	cfg := flightrec.DefaultConfig()
//	cfg.Output = "capture.bin"
//	cfg.TriggerAfter = 500
//	cfg.Once = true
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := flightrec.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Programs that need the controls (arm, trigger, tuning) or their own sinks
// should use pkg/flightrec directly.
package flightrec

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bft-labs/flightrec/internal/cliconfig"
	rt "github.com/bft-labs/flightrec/pkg/flightrec"
)

// Config holds the recorder configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Stats is a point-in-time view of the recorder counters.
type Stats = rt.Stats

// Run starts the recorder with the given configuration and blocks until ctx
// is cancelled or, with cfg.Once, the first window has been drained. It
// returns the final counters.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	r, closeOutputs, err := cliconfig.Build(cfg, "")
	if err != nil {
		return Stats{}, err
	}
	defer closeOutputs()

	if err := r.Start(ctx); err != nil {
		return Stats{}, fmt.Errorf("start runtime: %w", err)
	}
	select {
	case <-ctx.Done():
	case <-r.Done():
		if r.Status() == rt.StateCrashed {
			return r.Snapshot(), fmt.Errorf("runtime crashed")
		}
	}
	if err := r.Stop(); err != nil {
		return r.Snapshot(), fmt.Errorf("stop runtime: %w", err)
	}
	return r.Snapshot(), nil
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Logger returns the package-level zerolog logger.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}
