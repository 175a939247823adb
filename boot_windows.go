//go:build windows
// +build windows

package loreboot

import (
	"os"
	"os/exec"
)

// execProcess approximates execve on Windows: the child inherits stdio and
// the prepared environment, and the current process exits with the child's
// exit code once it finishes. It only returns on spawn failure.
func execProcess(path string, args []string, env []string) error {
	cmd := exec.Command(path, args[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	os.Exit(0)
	return nil
}
