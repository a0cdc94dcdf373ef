// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at link time:
//
//	go build -ldflags "-X spectrum/pkg/build.buildName=spectrum \
//	    -X spectrum/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds carry "dev" placeholders instead.
package build

import (
	"errors"
	"fmt"
	"runtime"
)

// Placeholder is reported for every field not set through -ldflags.
const Placeholder = "dev"

// Info is the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:    "spectrum",
		Time:    Placeholder,
		Commit:  Placeholder,
		Version: Placeholder,
	}
)

// ErrMissingFlag is wrapped by Initialize for every unset link-time value.
var ErrMissingFlag = errors.New("build flag not set")

// Initialize copies the link-time values into Get's result. It fails when any
// of them is missing, leaving the placeholders in place; callers running
// development builds may ignore the error.
func Initialize() error {
	var missing []error
	for _, f := range []struct{ name, value string }{
		{"buildName", buildName},
		{"buildTime", buildTime},
		{"buildCommit", buildCommit},
		{"buildVersion", buildVersion},
	} {
		if f.value == "" {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingFlag, f.name))
		}
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}

	buildInfo = Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}

// IsRelease reports whether the binary was built with full link-time
// metadata.
func (i Info) IsRelease() bool {
	return i.Version != Placeholder && i.Commit != Placeholder
}

// Summary is the one-line version string, e.g.
// "spectrum 0.3.0 (commit 1a2b3c4, built 2025-04-13T10:00:00Z, go1.24.1 linux/amd64)".
func (i Info) Summary() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		i.Name, i.Version, commit, i.Time, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
