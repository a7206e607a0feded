//go:build !windows

package scanner

import (
	"syscall"
	"time"
)

// Kill sends SIGTERM to pid, or SIGKILL when force is set. A process that
// ignores SIGTERM for half a second is killed outright.
func Kill(pid uint32, force bool) error {
	signal := syscall.SIGTERM
	if force {
		signal = syscall.SIGKILL
	}

	if err := syscall.Kill(int(pid), signal); err != nil {
		return err
	}

	if !force {
		time.Sleep(500 * time.Millisecond)
		if err := syscall.Kill(int(pid), 0); err == nil {
			return syscall.Kill(int(pid), syscall.SIGKILL)
		}
	}

	return nil
}
