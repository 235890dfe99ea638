//go:build windows

package component

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on Windows. Job Objects would give us the
// equivalent isolation but pull in x/sys/windows for a single call site.
func setProcessGroup(cmd *exec.Cmd) {}

// sendTerminate tries to signal os.Interrupt, since Windows processes don't
// receive SIGTERM. os.Process.Signal supports only Kill on Windows, so this
// returns an error (discarded by actOnProcess) and nothing reaches the child:
// on Windows the state moves to Terminating but the child is stopped only by
// the follow-up Kill.
func sendTerminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Signal(os.Interrupt)
}
