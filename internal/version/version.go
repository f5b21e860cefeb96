// Package version carries build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/MeKo-Tech/lbpfeat/internal/version.Version=v1.0.0"
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set by ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String is a one line summary suitable for logs.
func String() string {
	return fmt.Sprintf("lbpfeat %s (%s, %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}
