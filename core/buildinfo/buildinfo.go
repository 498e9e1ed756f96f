// Package buildinfo carries version data stamped in with -ldflags, e.g.
//
//	-X 'github.com/bryanwax12/newbotcursor/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/bryanwax12/newbotcursor/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/bryanwax12/newbotcursor/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC3339; empty for local builds.
	Date = ""
)

// String renders "v1.2.3 (commit abcdef0, built 2025-08-30T12:00:00Z)".
func String() string {
	date := Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, date)
}
