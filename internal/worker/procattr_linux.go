//go:build linux

package worker

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr makes the subprocess die with its supervisor so a
// killed manager leaves no orphans behind.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
