package flightrec

import (
	"context"

	"github.com/bft-labs/flightrec/pkg/log"
)

// Controller is the control surface plugins and consoles drive.
type Controller interface {
	Arm() error
	Trigger() error
	StopCapture() error
	SetReference(amps float32)
	Tune(step, max uint32)
	SetTriggerPolicy(after uint32, level float64)
	Snapshot() Stats
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	Config     Config
	Controller Controller
	Logger     log.Logger
}

// Plugin extends a Runtime. Plugins are initialized in registration order
// on Start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}
