//go:build windows

package process

import "github.com/torctl/torctl/logging"

// disableCoreDumps is a no-op on windows; there is no RLIMIT_CORE
// equivalent worth chasing here, and Windows Error Reporting is
// controlled system-wide rather than per-process.
func disableCoreDumps(logging.Logger) {}
