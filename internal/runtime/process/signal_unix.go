//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// KillSignal returns the signal used to forcefully stop a child.
func KillSignal() os.Signal {
	return syscall.SIGKILL
}

// TerminateSignal returns the signal used to politely ask a child to exit.
func TerminateSignal() os.Signal {
	return syscall.SIGTERM
}

func deliverSignal(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}

// exitCode maps a reaped child's state onto the POSIX convention where a
// signal death reports the negated signal number.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}
