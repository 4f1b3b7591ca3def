package flightrec

import (
	"fmt"

	"github.com/bft-labs/flightrec/pkg/lifecycle"
	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/record"
	"github.com/bft-labs/flightrec/pkg/state"
)

// Version information for the runtime module.
const (
	Version              = "1.0.0"
	MinCompatibleVersion = "1.0.0"
)

type moduleVersion struct {
	version    string
	minVersion string
}

var modules = map[string]moduleVersion{
	"record":    {record.Version, record.MinCompatibleVersion},
	"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
	"state":     {state.Version, state.MinCompatibleVersion},
	"log":       {log.Version, log.MinCompatibleVersion},
}

// ModuleVersions returns the version of every sub-module.
func ModuleVersions() map[string]string {
	out := map[string]string{"flightrec": Version}
	for name, m := range modules {
		out[name] = m.version
	}
	return out
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion. Both are
// "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
