//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// taskkill ends pid and all of its descendants.
var taskkill = func(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

// killTree walks the tree from the parent, so the parent must still be
// alive when taskkill runs. Kill is only the fallback.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := taskkill(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
	}
}

func shellCommand(command string) (string, []string) {
	return "cmd.exe", []string{"/C", command}
}
