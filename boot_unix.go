//go:build !windows
// +build !windows

package loreboot

import (
	"golang.org/x/sys/unix"
)

// execProcess replaces the current process image via execve.
// It only returns on error.
func execProcess(path string, args []string, env []string) error {
	return unix.Exec(path, args, env)
}
