package loreboot

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ProgressCallback is called during long-running operations to report
// progress. The message describes the current operation, current is the
// progress value, and total is the expected total (-1 if unknown).
type ProgressCallback func(message string, current, total int64)

// VenvOptions configures the creation of a virtual environment.
// These options correspond to the flags available in Python's venv module.
type VenvOptions struct {
	// SystemSitePackages gives access to the system site-packages directory.
	SystemSitePackages bool

	// Symlinks creates symlinks to Python files instead of copies (Unix default).
	Symlinks bool

	// Copies creates copies of Python files instead of symlinks (Windows default).
	Copies bool

	// Clear deletes the contents of the environment directory if it exists.
	Clear bool

	// Upgrade upgrades an existing environment to use the current Python version.
	Upgrade bool

	// WithoutPip skips pip installation in the virtual environment.
	WithoutPip bool

	// Prompt sets a custom prompt prefix for the virtual environment.
	Prompt string

	// UpgradeDeps upgrades pip and setuptools to the latest versions.
	UpgradeDeps bool
}

// Install creates the app virtualenv when missing and installs the app's
// requirements into it. This is the full "lore install" path.
func Install(e *Environment, progress ProgressCallback) error {
	if err := CreateVenv(e, VenvOptions{Prompt: e.App}, progress); err != nil {
		return err
	}

	if fileExists(e.Requirements) {
		if err := e.PipInstallRequirements(e.Requirements, progress); err != nil {
			return err
		}
	}

	// A missing snapshot only costs a re-probe on the next boot.
	_ = e.WriteSnapshot()

	return nil
}

// CreateVenv creates the app virtualenv at e.Prefix using the venv module of
// a base interpreter that matches the required version. If the virtualenv
// already exists it is reused (or upgraded/cleared per options) and IsNew is
// left false.
func CreateVenv(e *Environment, options VenvOptions, progress ProgressCallback) error {
	if e.PythonVersion == nil {
		return fmt.Errorf("no python version requirement found (missing %s)", RuntimeFile)
	}

	basePython, err := e.baseInterpreter(progress)
	if err != nil {
		return err
	}

	envExists := fileExists(e.Prefix)
	e.IsNew = !envExists || options.Clear

	args := []string{"-m", "venv"}
	if options.SystemSitePackages {
		args = append(args, "--system-site-packages")
	}
	if options.Symlinks {
		args = append(args, "--symlinks")
	}
	if options.Copies {
		args = append(args, "--copies")
	}
	if options.Clear {
		args = append(args, "--clear")
	} else if options.Upgrade {
		args = append(args, "--upgrade")
	}
	if options.WithoutPip {
		args = append(args, "--without-pip")
	}
	if options.Prompt != "" {
		args = append(args, "--prompt", options.Prompt)
	}
	if options.UpgradeDeps {
		args = append(args, "--upgrade-deps")
	}
	args = append(args, e.Prefix)

	var stderr bytes.Buffer
	venvCmd := exec.Command(basePython, args...)
	venvCmd.Stderr = &stderr
	if err := venvCmd.Run(); err != nil {
		return fmt.Errorf("failed to create virtual environment: %v, stderr: %s", err, stderr.String())
	}

	if progress != nil {
		if e.IsNew {
			progress("Created virtual environment", 20, 100)
		} else {
			progress("Updated virtual environment", 20, 100)
		}
	}

	// Re-probe the executable fallback chain now that the venv exists.
	e.setPythonVersion(e.PythonVersion)

	out, err := execCombined(e.BinPython, "--version")
	if err != nil {
		return fmt.Errorf("error running python --version: %v", err)
	}
	actual, err := ParsePythonVersion(out)
	if err != nil {
		return fmt.Errorf("error parsing python version: %v", err)
	}
	if actual.Compare(*e.PythonVersion) < 0 {
		return fmt.Errorf("requested python version %s is not available, found %s",
			e.PythonVersion.String(), actual.String())
	}

	if progress != nil {
		progress("Virtual environment setup complete", 100, 100)
	}
	return nil
}

// baseInterpreter finds an interpreter to create the virtualenv from: the
// matching pyenv installation when pyenv is present (installing the version
// on demand), otherwise the first python on PATH.
func (e *Environment) baseInterpreter(progress ProgressCallback) (string, error) {
	if fileExists(e.BinPyenv) && e.PythonVersion != nil {
		pyenvPython := filepath.Join(e.PyenvRoot, "versions", e.PythonVersion.String(), "bin", "python")
		if fileExists(pyenvPython) {
			return pyenvPython, nil
		}

		if progress != nil {
			progress(fmt.Sprintf("Installing python %s with pyenv...", e.PythonVersion.String()), 0, -1)
		}
		installCmd := exec.Command(e.BinPyenv, "install", "--skip-existing", e.PythonVersion.String())
		var stderr bytes.Buffer
		installCmd.Stderr = &stderr
		if err := installCmd.Run(); err != nil {
			return "", fmt.Errorf("error installing python %s with pyenv: %v, stderr: %s",
				e.PythonVersion.String(), err, stderr.String())
		}
		if fileExists(pyenvPython) {
			return pyenvPython, nil
		}
		return "", fmt.Errorf("pyenv did not install python %s at %s", e.PythonVersion.String(), pyenvPython)
	}

	return systemPython()
}

// systemPython locates a python interpreter on PATH.
//
// On Windows the Microsoft Store ships placeholder executables under
// WindowsApps that must be filtered out.
func systemPython() (string, error) {
	if runtime.GOOS == "windows" {
		if path, err := exec.LookPath("py"); err == nil {
			return path, nil
		}
		path, err := exec.LookPath("python")
		if err != nil {
			return "", fmt.Errorf("python not found: %v", err)
		}
		if strings.Contains(path, filepath.Join("Microsoft", "WindowsApps")) {
			return "", fmt.Errorf("only the Microsoft Store python placeholder was found: %s", path)
		}
		return path, nil
	}

	path, err := exec.LookPath("python3")
	if err != nil {
		path, err = exec.LookPath("python")
		if err != nil {
			return "", fmt.Errorf("python not found: %v", err)
		}
	}
	return path, nil
}
