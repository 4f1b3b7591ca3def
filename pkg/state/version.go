package state

// Version information for the state module.
const (
	// Version is the current version of the state module.
	Version = "2.0.0"

	// MinCompatibleVersion is the oldest state module the runtime accepts.
	// 2.0.0 replaced the stream position with the drained session summary.
	MinCompatibleVersion = "2.0.0"
)
