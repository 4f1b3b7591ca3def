package flightrec

import (
	"github.com/bft-labs/flightrec/pkg/bytestore"
	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/recorder"
	"github.com/bft-labs/flightrec/pkg/state"
)

// Option configures optional behavior of a Runtime.
type Option func(*options)

type options struct {
	logger       log.Logger
	sink         link.Sink
	archive      *bytestore.Service
	eventHandler EventHandler
	plugins      []Plugin
	section      recorder.CriticalSection
	stateRepo    state.Repository
}

func defaultOptions() options {
	return options{
		logger:  log.NewNoopLogger(),
		sink:    link.Discard{},
		section: &recorder.MutexSection{},
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSink sets where scheduler frames go. The default drops them.
// The runtime does not close the sink.
func WithSink(sink link.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithArchive copies every drained window into the byte store.
func WithArchive(svc *bytestore.Service) Option {
	return func(o *options) {
		o.archive = svc
	}
}

// WithEventHandler sets a handler for runtime events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithCriticalSection sets the exclusion guarding the recorder. The default
// is a mutex, since the slow goroutine and the controls both reach it.
func WithCriticalSection(cs recorder.CriticalSection) Option {
	return func(o *options) {
		if cs != nil {
			o.section = cs
		}
	}
}

// WithStateRepository persists a summary of every drained window and
// resumes session numbering from it.
func WithStateRepository(repo state.Repository) Option {
	return func(o *options) {
		o.stateRepo = repo
	}
}
