//go:build windows

package process

import (
	"os"

	"golang.org/x/sys/windows"
)

// stillActive is the GetExitCodeProcess sentinel for a running process.
const stillActive = 259

func pollExit(proc *os.Process) (int, bool) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return -1, true
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return -1, true
	}
	if code == stillActive {
		return 0, false
	}
	return int(code), true
}
