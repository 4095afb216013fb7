//go:build unix

package pipeline

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the command in its own process group, detached from
// the terminal's foreground group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroupOnCancel makes context cancellation kill everything the command
// spawned, not just the leader. cmd must come from exec.CommandContext.
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		// Negative pid addresses the whole group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
