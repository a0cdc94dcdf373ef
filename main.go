// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"spectrum/cmd"
	"spectrum/internal/log"
	"spectrum/pkg/build"
)

// main runs the command line. Startup (build info, configuration, audio
// subsystem) and shutdown happen on cold paths; sample delivery and
// analysis run on the source's goroutine until the command returns.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
