package configwatcher

import "github.com/bft-labs/flightrec/pkg/flightrec"

// WithConfigWatcher returns a runtime Option that reloads tuning from the
// config file whenever it changes.
//
// Usage:
//
//	rt, err := flightrec.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig(path)),
//	)
func WithConfigWatcher(cfg Config) flightrec.Option {
	return flightrec.WithPlugin(New(cfg))
}
