// Package bootstrap parses process flags and hands off to the app
// service, mirroring the teacher's flag-parse-then-bootstrap pattern
// (internal/pkg/startup in the original module).
package bootstrap

import (
	"fmt"
	"os"

	"solarfleet-sim/internal/app"
)

// Run parses flags, builds and runs the app.Service, and returns the
// process exit code: 0 on normal shutdown, 1 on startup failure.
func Run(appName, version string, args []string) int {
	fs := newFlagSet(appName)
	dbPath, httpPort, logLevel, err := fs.parse(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}

	fmt.Printf("starting %s %s\n", appName, version)

	svc := app.New(app.Config{DBPath: dbPath, HTTPPort: httpPort, LogLevel: logLevel})
	if err := svc.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: initialize failed: %v\n", appName, err)
		return 1
	}

	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: run failed: %v\n", appName, err)
		return 1
	}

	return 0
}
