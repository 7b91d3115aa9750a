//go:build !windows

package process

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// pollExit reaps the child if it has exited without blocking.
func pollExit(proc *os.Process) (int, bool) {
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(proc.Pid, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			// ECHILD: somebody else reaped it; the status is lost.
			return -1, true
		}
		if pid == 0 {
			return 0, false
		}
		break
	}
	if ws.Signaled() {
		return -int(ws.Signal()), true
	}
	return ws.ExitStatus(), true
}
