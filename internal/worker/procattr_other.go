//go:build !linux

package worker

import "os/exec"

// configureSysProcAttr is a no-op where parent-death signals are not
// available; Stop remains the only teardown path.
func configureSysProcAttr(cmd *exec.Cmd) {}
