//go:build !windows

package process

import (
	"golang.org/x/sys/unix"

	"github.com/torctl/torctl/logging"
)

// disableCoreDumps sets RLIMIT_CORE to zero on the supervisor process
// before the tor child is spawned. Rlimits are inherited across exec, so
// this also applies to tor itself, keeping its control-port auth cookie
// and any key material out of a crash dump. Best-effort: a platform that
// refuses the prlimit call still starts tor normally.
func disableCoreDumps(logger logging.Logger) {
	var rlim unix.Rlimit
	rlim.Cur, rlim.Max = 0, 0
	if err := unix.Prlimit(0, unix.RLIMIT_CORE, &rlim, nil); err != nil {
		logger.Log("debug", "disableCoreDumps: setting RLIMIT_CORE failed", "error", err.Error())
	}
}
