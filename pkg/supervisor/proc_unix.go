//go:build unix

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcAttrs puts the child in its own process group so a stop can
// reach grandchildren too (shell wrappers, dataloader workers).
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree signals the child's whole process group, falling back
// to the child alone when the group signal fails.
func killProcessTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
