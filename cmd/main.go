package main

import (
	"os"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	setVersionInfo(version, commit, date)

	// Errors are printed by the commands themselves.
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
