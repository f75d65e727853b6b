package version

import (
	"fmt"
	"runtime"
)

// These variables are populated at build time via -ldflags.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func String() string {
	base := Version
	if Commit != "" {
		base += fmt.Sprintf(" (%s)", Commit)
	}
	if Date != "" {
		base += fmt.Sprintf(" %s", Date)
	}
	return base
}

// UserAgent is sent by the gateway on every backend request.
func UserAgent() string {
	return fmt.Sprintf("proxylog/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
