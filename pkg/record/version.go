package record

// Version information for the record module.
const (
	// Version is the current version of the record module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"

	// FormatVersion is the wire format revision reported in recorder status
	// and META records.
	FormatVersion uint32 = 1
)
