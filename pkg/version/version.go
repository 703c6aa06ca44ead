// Package version provides version information for the adapter service.
package version

// Version is the current version of the adapter service.
const Version = "0.3.0"

// AgentString returns the full agent string with versioning.
// Format: external-adapter-go/v{version}
func AgentString() string {
	return "external-adapter-go/v" + Version
}
