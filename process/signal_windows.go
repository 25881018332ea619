//go:build windows

package process

import "os"

// terminateSignal is the signal Stop sends for a graceful shutdown
// request. Windows has no SIGTERM; os.Interrupt is the closest portable
// equivalent exec.Process.Signal accepts there.
func terminateSignal() os.Signal { return os.Interrupt }
