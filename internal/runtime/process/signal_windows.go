//go:build windows

package process

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// KillSignal returns the signal used to forcefully stop a child. Windows has
// no SIGKILL; os.Kill maps to TerminateProcess and the child reports exit
// status 1 rather than a signal death.
func KillSignal() os.Signal {
	return os.Kill
}

// TerminateSignal returns the signal used to ask a child to exit. Windows
// cannot deliver SIGTERM, so it shares the forceful path.
func TerminateSignal() os.Signal {
	return os.Kill
}

// deliverSignal translates an interrupt into a console CTRL_BREAK event for
// the child's process group, falling back to TerminateProcess.
func deliverSignal(p *os.Process, sig os.Signal) error {
	if sig != os.Interrupt {
		return p.Kill()
	}
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid)); err != nil {
		return p.Kill()
	}
	return nil
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, windows.ERROR_INVALID_PARAMETER)
}

func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}
