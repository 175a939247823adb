package loreboot

import (
	"bufio"
	"os/exec"
	"strings"
)

// runReadCombined executes a command and returns its combined stdout/stderr,
// trimmed. Older interpreters print --version to stderr, so probes read both.
func runReadCombined(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(output)), err
	}
	return strings.TrimSpace(string(output)), nil
}

// runReadStdout executes a command and returns its stdout line by line.
func runReadStdout(name string, args ...string) ([]string, error) {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	defer stdout.Close()

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return lines, err
	}
	return lines, nil
}
