//go:build windows

package probe

import (
	"os/exec"
	"strconv"
	"syscall"
)

// createNoWindow prevents a console window from flashing for each probe.
const createNoWindow = 0x08000000

func shellCommand(command string) *exec.Cmd {
	return exec.Command("cmd", "/C", command)
}

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
}

// terminateCommand asks the tree to exit via taskkill without /F so
// console handlers get a chance to run.
func terminateCommand(cmd *exec.Cmd) {
	taskkill(cmd, false)
}

func killCommand(cmd *exec.Cmd) {
	taskkill(cmd, true)
}

func taskkill(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	args := []string{"/T", "/PID", strconv.Itoa(cmd.Process.Pid)}
	if force {
		args = append([]string{"/F"}, args...)
	}
	kill := exec.Command("taskkill", args...)
	kill.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
	_ = kill.Run()
}
