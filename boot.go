package loreboot

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Launch ensures the process is running inside the app virtualenv past this
// point. If the current process is already launched, the interpreter version
// is sanity checked and the working directory moves to the app root. If not,
// the virtualenv is created when missing and the process is replaced with an
// equivalent invocation inside it.
//
// On Unix a successful relaunch never returns. A nil error with no relaunch
// means execution should simply continue.
func Launch(e *Environment, argv []string, progress ProgressCallback) error {
	if e.Launched() {
		if err := e.CheckVersion(); err != nil {
			return err
		}
		if err := os.Chdir(e.Root); err != nil {
			return fmt.Errorf("error changing to app root: %v", err)
		}
		return nil
	}

	if !fileExists(e.BinLore) {
		if hasFlag(argv, FlagEnvLaunched) {
			// We already relaunched once and the virtualenv still isn't
			// there: installation failed.
			return fmt.Errorf("%s virtualenv is missing. Please check for errors during:\n $ lore install", e.App)
		}
		if err := Install(e, progress); err != nil {
			return err
		}
	}

	return Reboot(e, argv, FlagEnvLaunched)
}

// Reboot replaces the current process with the same invocation inside the app
// virtualenv. argv[0] is rewritten to the virtualenv interpreter or lore
// entry point, the virtualenv bin directory is prepended to PATH, and
// VIRTUAL_ENV is set so the relaunched process detects itself as launched.
//
// On Unix this calls execve and does not return on success. On Windows the
// child is spawned and waited on, and the current process exits with the
// child's exit code.
func Reboot(e *Environment, argv []string, extra ...string) error {
	args := rebootArgs(e, argv, extra...)

	if err := execProcess(args[0], args, activatedEnviron(e)); err != nil {
		if args[0] == e.BinLore && len(args) > 1 && args[1] == "console" {
			return fmt.Errorf(
				"error relaunching: %v\nYour jupyter kernel may be corrupt. Please remove it so lore can reinstall:\n $ rm -r %s",
				err, jupyterKernelPath(e),
			)
		}
		return fmt.Errorf("error relaunching in %s: %v", e.Prefix, err)
	}
	return nil
}

// rebootArgs builds the relaunch argument vector: sentinels appended and
// argv[0] redirected into the virtualenv.
func rebootArgs(e *Environment, argv []string, extra ...string) []string {
	args := make([]string, len(argv), len(argv)+len(extra))
	copy(args, argv)
	args = append(args, extra...)
	if len(args) == 0 {
		return []string{e.BinPython}
	}
	if args[0] == "" {
		args[0] = e.BinPython
		return args
	}

	switch base := filepath.Base(args[0]); base {
	case "python", "python.exe":
		args[0] = e.BinPython
	case "lore", "lore.exe":
		args[0] = e.BinLore
	case "loreboot", "loreboot.exe":
		// The launcher re-execs itself; activation comes from the environment
		// it builds, not from a copy inside the virtualenv.
		if self, err := osExecutable(); err == nil {
			args[0] = self
		}
	}
	return args
}

// ExecIn replaces the current process with argv executed inside the app
// virtualenv. Relative commands resolve against the virtualenv bin directory
// first, then PATH.
func ExecIn(e *Environment, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command given")
	}

	path := argv[0]
	if !filepath.IsAbs(path) {
		if candidate := filepath.Join(filepath.Dir(e.BinPython), path); fileExists(candidate) {
			path = candidate
		} else if resolved, err := exec.LookPath(path); err == nil {
			path = resolved
		}
	}

	if err := execProcess(path, argv, activatedEnviron(e)); err != nil {
		return fmt.Errorf("error executing %s in %s: %v", path, e.Prefix, err)
	}
	return nil
}

// activatedEnviron returns the process environment with the virtualenv
// activated: VIRTUAL_ENV set, the env bin directory first on PATH, and the
// stale launcher variable removed. Python 3 injects __PYVENV_LAUNCHER__, which
// breaks pyenv virtualenvs by repointing the venv python symlink; see
// https://bugs.python.org/issue22490.
func activatedEnviron(e *Environment) []string {
	binDir := filepath.Dir(e.BinPython)

	environ := os.Environ()
	out := make([]string, 0, len(environ)+2)
	pathSet := false
	for _, kv := range environ {
		key, value, _ := strings.Cut(kv, "=")
		switch key {
		case "__PYVENV_LAUNCHER__", EnvVirtualEnv:
			continue
		case "PATH":
			out = append(out, "PATH="+binDir+string(os.PathListSeparator)+value)
			pathSet = true
		default:
			out = append(out, kv)
		}
	}
	if !pathSet {
		out = append(out, "PATH="+binDir)
	}
	out = append(out, EnvVirtualEnv+"="+e.Prefix)
	return out
}

// jupyterKernelPath is the expected per-app jupyter kernel directory,
// following the jupyter data directory rules for each platform.
func jupyterKernelPath(e *Environment) string {
	if dir := os.Getenv("JUPYTER_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "kernels", e.App)
	}

	home, err := osUserHome()
	if err != nil || home == "" {
		home = e.Root
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Jupyter", "kernels", e.App)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "jupyter", "kernels", e.App)
		}
		return filepath.Join(home, "AppData", "Roaming", "jupyter", "kernels", e.App)
	}

	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "jupyter", "kernels", e.App)
	}
	return filepath.Join(home, ".local", "share", "jupyter", "kernels", e.App)
}
