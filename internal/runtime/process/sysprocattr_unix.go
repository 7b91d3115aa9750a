//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = sysProcAttr()
}

// sysProcAttr places the child in its own process group so terminal
// generated signals are not delivered to it directly.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
