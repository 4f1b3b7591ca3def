package log

// Version information for the log module.
const (
	// Version is the current version of the log module.
	Version = "1.1.0"

	// MinCompatibleVersion is the oldest log module the runtime accepts.
	// 1.1.0 added Uint32 fields.
	MinCompatibleVersion = "1.1.0"
)
