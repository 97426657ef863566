package server

// Version is the GoMuch version string.
// Override at build time with: go build -ldflags "-X github.com/much-hall/gomuch/pkg/server.Version=0.1.0"
var Version = "0.1.0"

// VersionString returns the full version display string.
func VersionString() string {
	return "GoMuch " + Version
}
