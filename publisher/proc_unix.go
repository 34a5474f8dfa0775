//go:build !windows

package publisher

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the encoder in its own process group so terminal
// signals aimed at the load tester do not reach it directly.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalProc(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = cmd.Process.Signal(sig)
}

func terminateProc(cmd *exec.Cmd) {
	signalProc(cmd, syscall.SIGTERM)
}

func killProc(cmd *exec.Cmd) {
	signalProc(cmd, syscall.SIGKILL)
}
