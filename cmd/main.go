package main

import (
	"os"

	"solarfleet-sim/internal/pkg/bootstrap"
)

const (
	appName = "solarfleet-sim"
	version = "0.1.0"
)

func main() {
	os.Exit(bootstrap.Run(appName, version, os.Args[1:]))
}
