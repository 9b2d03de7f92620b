//go:build windows

package process

import (
	"errors"
	"os/exec"
	"testing"
	"time"
)

func startSleeper(t *testing.T) (*exec.Cmd, chan error) {
	t.Helper()
	cmd := exec.Command("cmd.exe", "/C", "ping -n 30 127.0.0.1 >NUL")
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	return cmd, done
}

func waitExit(t *testing.T, done chan error) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("process tree still running")
	}
}

func TestKillTree_WalksTreeBeforeParentDies(t *testing.T) {
	cmd, done := startSleeper(t)
	orig := taskkill
	t.Cleanup(func() { taskkill = orig })

	var pids []int
	taskkill = func(pid int) error {
		pids = append(pids, pid)
		select {
		case err := <-done:
			t.Error("parent exited before taskkill ran; its children would be orphaned")
			done <- err
		case <-time.After(200 * time.Millisecond):
		}
		return orig(pid)
	}

	killTree(cmd)
	if len(pids) != 1 || pids[0] != cmd.Process.Pid {
		t.Errorf("taskkill pids = %v, want [%d]", pids, cmd.Process.Pid)
	}
	waitExit(t, done)
}

func TestKillTree_FallsBackToKill(t *testing.T) {
	cmd, done := startSleeper(t)
	orig := taskkill
	t.Cleanup(func() { taskkill = orig })
	taskkill = func(int) error { return errors.New("taskkill unavailable") }

	killTree(cmd)
	waitExit(t, done)
}
