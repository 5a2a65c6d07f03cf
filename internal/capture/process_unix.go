//go:build linux || darwin

package capture

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup starts ffmpeg in its own process group so the whole
// group can be killed together.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcessGroup kills ffmpeg and its children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	// already exited
	if err == syscall.ESRCH {
		return nil
	}
	return err
}
