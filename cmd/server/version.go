// In file: cmd/server/version.go
package main

import (
	"fmt"
	"runtime"
)

// Populated at build time via
// -ldflags "-X main.version=... -X main.buildDate=... -X main.gitCommit=...".
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// BuildInfo identifies the running binary; it is logged at startup and
// served on /healthz so deployed instances can be told apart.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the one-line form used in the startup log.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s, %s %s)", b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
