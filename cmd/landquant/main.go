// Command landquant is the land-utilization analysis CLI. It talks to a
// running API server for scans and searches, and runs scoring, mismatch
// detection, and whole fixture-backed scans locally with --offline.
package main

import (
	"os"

	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/cli"
)

// Build metadata injected via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
	os.Exit(cli.Execute())
}
