//go:build windows

package scanner

import (
	"os/exec"
	"strconv"
)

// Kill terminates pid with taskkill, adding /F when force is set
func Kill(pid uint32, force bool) error {
	args := []string{"/PID", strconv.FormatUint(uint64(pid), 10)}
	if force {
		args = append(args, "/F")
	}

	cmd := exec.Command("taskkill", args...)
	return cmd.Run()
}
