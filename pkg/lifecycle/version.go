package lifecycle

// Version information for the lifecycle module.
const (
	// Version is the current version of the lifecycle module.
	Version = "1.1.0"

	// MinCompatibleVersion is the oldest lifecycle module the runtime accepts.
	MinCompatibleVersion = "1.1.0"
)
