package loreboot

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Environment names. Test should reflect exactly what happens in production,
// development is for mucking about.
const (
	Development = "development"
	Test        = "test"
	Production  = "production"

	// DefaultName is the environment you get when LORE_ENV is unset.
	DefaultName = Development
)

// Well-known file names inside an app root.
const (
	// RuntimeFile pins the interpreter version required by the app.
	RuntimeFile = "runtime.txt"

	// RequirementsFile lists the app's pip dependencies.
	RequirementsFile = "requirements.txt"
)

// Environment variables that drive discovery.
const (
	EnvRoot          = "LORE_ROOT"
	EnvApp           = "LORE_APP"
	EnvName          = "LORE_ENV"
	EnvPythonVersion = "LORE_PYTHON_VERSION"
	EnvPyenvRoot     = "PYENV_ROOT"
	EnvVirtualEnv    = "VIRTUAL_ENV"
	EnvWorkDir       = "WORK_DIR"
	EnvDirectory     = "ENV_DIRECTORY"
)

// Sentinel arguments appended on re-exec so a broken environment cannot
// relaunch itself forever.
const (
	FlagEnvLaunched = "--env-launched"
	FlagEnvChecked  = "--env-checked"
)

// Test seams, swapped out in _test.go files.
var (
	osGetwd      = os.Getwd
	osExecutable = os.Executable
	osUserHome   = os.UserHomeDir
	osHostname   = os.Hostname
	execCombined = runReadCombined
	execReboot   = Reboot
)

// Environment describes a per-app isolated Python runtime: where the app
// lives, which interpreter it requires, and where the isolated environment's
// executables are expected. All fields are computed once by Discover and are
// plain data afterwards.
type Environment struct {
	// Root is the app root directory, found via LORE_ROOT or by walking up
	// from the working directory until a runtime.txt is found.
	Root string `json:"root"`

	// App is the app name (LORE_APP or the base name of Root). Virtualenvs
	// are named after it, so two apps with the same name share one.
	App string `json:"app"`

	// Name is the current environment name: development, test, or production.
	Name string `json:"name"`

	// Host is the current machine name.
	Host string `json:"host"`

	// PythonVersion is the interpreter version the app requires, or nil when
	// no runtime.txt (or LORE_PYTHON_VERSION) could be found.
	PythonVersion *Version `json:"python_version,omitempty"`

	// Prefix is the path to the app virtualenv.
	Prefix string `json:"prefix,omitempty"`

	// BinPython is the interpreter inside the virtualenv, probed through the
	// pythonX.Y.Z -> pythonX.Y -> pythonX -> python fallback chain.
	BinPython string `json:"bin_python,omitempty"`

	// BinLore is the lore entry point inside the virtualenv.
	BinLore string `json:"bin_lore,omitempty"`

	// BinJupyter is the jupyter executable inside the virtualenv.
	BinJupyter string `json:"bin_jupyter,omitempty"`

	// BinFlask is the flask executable inside the virtualenv.
	BinFlask string `json:"bin_flask,omitempty"`

	// PyenvRoot is the pyenv installation root, when one exists.
	PyenvRoot string `json:"pyenv_root,omitempty"`

	// BinPyenv is the pyenv executable under PyenvRoot.
	BinPyenv string `json:"bin_pyenv,omitempty"`

	// Requirements is the path to the app's requirements.txt.
	Requirements string `json:"requirements"`

	// WorkDir is the root for disk based work. The test environment redirects
	// it to the tests directory so runs stay hermetic.
	WorkDir string `json:"work_dir"`

	// ModelsDir, DataDir, and LogDir hang off WorkDir.
	ModelsDir string `json:"models_dir"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`

	// TestsDir is the app test suite directory.
	TestsDir string `json:"tests_dir"`

	// Lib is an extra import path for vendored app code.
	Lib string `json:"lib"`

	// IsNew indicates whether the virtualenv was created by this process
	// (true) or already existed (false).
	IsNew bool `json:"-"`
}

// Discover computes the full environment from environment variables and
// filesystem probes. argv is the process argument vector (os.Args); it is
// only inspected to default the environment name to test when the first
// subcommand is "test".
//
// Discover never exits: conditions that should stop a boot are reported by
// Validate, CheckVersion, and CheckRequirements.
func Discover(argv []string) (*Environment, error) {
	e := &Environment{}

	root := os.Getenv(EnvRoot)
	var required *Version

	if v := os.Getenv(EnvPythonVersion); v != "" {
		parsed, err := ParseVersion(v)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s: %v", EnvPythonVersion, err)
		}
		required = &parsed
	}

	if root != "" {
		if required == nil {
			required = readRuntimeFile(filepath.Join(root, RuntimeFile))
		}
	} else {
		cwd, err := osGetwd()
		if err != nil {
			return nil, fmt.Errorf("error getting working directory: %v", err)
		}
		root = cwd
		if required == nil {
			// Walk up until a runtime.txt is found; give up at the
			// filesystem root and fall back to the working directory.
			for {
				required = readRuntimeFile(filepath.Join(root, RuntimeFile))
				if required != nil {
					break
				}
				parent := filepath.Dir(root)
				if parent == root {
					root = cwd
					break
				}
				root = parent
			}
		}
	}

	e.Root = root
	e.PythonVersion = required

	e.App = os.Getenv(EnvApp)
	if e.App == "" {
		e.App = filepath.Base(root)
	}

	e.Name = os.Getenv(EnvName)
	if e.Name == "" {
		if len(argv) > 1 && argv[1] == "test" {
			e.Name = Test
		} else {
			e.Name = DefaultName
		}
	}

	e.Host, _ = osHostname()
	e.Requirements = filepath.Join(root, RequirementsFile)

	home, err := osUserHome()
	if err != nil || home == "" {
		home = root
	}

	e.PyenvRoot = os.Getenv(EnvPyenvRoot)
	if e.PyenvRoot == "" {
		e.PyenvRoot = filepath.Join(home, ".pyenv")
	}
	if realPyenv, err := filepath.EvalSymlinks(e.PyenvRoot); err == nil {
		e.PyenvRoot = realPyenv
	}
	e.BinPyenv = filepath.Join(e.PyenvRoot, "bin", "pyenv")

	e.setPythonVersion(required)

	if e.Name == Test {
		e.WorkDir = filepath.Join(root, "tests")
	} else if wd := os.Getenv(EnvWorkDir); wd != "" {
		e.WorkDir = wd
	} else {
		e.WorkDir = root
	}
	e.ModelsDir = filepath.Join(e.WorkDir, "models")
	e.DataDir = filepath.Join(e.WorkDir, "data")
	if e.Name == Test {
		e.LogDir = filepath.Join(root, "logs")
	} else {
		e.LogDir = filepath.Join(e.WorkDir, "logs")
	}
	e.TestsDir = filepath.Join(root, "tests")
	e.Lib = filepath.Join(root, "lib")

	return e, nil
}

// setPythonVersion computes the virtualenv prefix and executable paths for
// the required interpreter version. A nil version leaves the paths empty.
func (e *Environment) setPythonVersion(v *Version) {
	e.PythonVersion = v
	if v == nil {
		return
	}

	if runtime.GOOS == "windows" {
		e.Prefix = filepath.Join(e.Root, ".python")
		binDir := filepath.Join(e.Prefix, "Scripts")
		e.BinPython = filepath.Join(binDir, "python.exe")
		e.BinLore = filepath.Join(binDir, "lore.exe")
		e.BinJupyter = filepath.Join(binDir, "jupyter.exe")
		e.BinFlask = filepath.Join(binDir, "flask.exe")
		return
	}

	if _, err := os.Stat(e.PyenvRoot); err == nil {
		e.Prefix = filepath.Join(e.PyenvRoot, "versions", v.String(), "envs", e.App)
	} else {
		e.Prefix = filepath.Join(e.Root, ".python")
	}

	binDir := filepath.Join(e.Prefix, "bin")
	candidates := []string{
		"python" + v.String(),
		"python" + v.MinorString(),
		fmt.Sprintf("python%d", v.Major),
		"python",
	}
	e.BinPython = filepath.Join(binDir, candidates[len(candidates)-1])
	for _, name := range candidates {
		p := filepath.Join(binDir, name)
		if _, err := os.Stat(p); err == nil {
			e.BinPython = p
			break
		}
	}

	e.BinLore = filepath.Join(binDir, "lore")
	e.BinJupyter = filepath.Join(binDir, "jupyter")
	e.BinFlask = filepath.Join(binDir, "flask")
}

// Exists reports whether an app environment could be determined from the
// current working directory, i.e. a required interpreter version was found.
func (e *Environment) Exists() bool {
	return e.PythonVersion != nil
}

// Launched reports whether the current process is already running inside the
// app virtualenv, by comparing the resolved VIRTUAL_ENV against the resolved
// Prefix.
func (e *Environment) Launched() bool {
	if e.Prefix == "" {
		return false
	}
	active := os.Getenv(EnvVirtualEnv)
	if active == "" {
		return false
	}
	return realpath(active) == realpath(e.Prefix)
}

// Validate returns an error when the app module or the environment itself is
// missing. argv is used to name the attempted command in the message.
func (e *Environment) Validate(argv []string) error {
	if _, err := os.Stat(filepath.Join(e.Root, e.App, "__init__.py")); err != nil {
		msg := "python module not found."
		if os.Getenv(EnvApp) == "" {
			msg += fmt.Sprintf(" $%s is not set. Should it be different than %q?", EnvApp, e.App)
		} else {
			msg += fmt.Sprintf(" $%s is set to %q. Should it be different?", EnvApp, e.App)
		}
		return fmt.Errorf("%s", msg)
	}

	if e.Exists() {
		return nil
	}

	command := "lore"
	if len(argv) > 1 {
		command = argv[1]
	}
	return fmt.Errorf("%s is only available in lore app directories (missing %s)", command, RuntimeFile)
}

// CheckVersion probes the virtualenv interpreter and returns an error when it
// does not match the version required by runtime.txt. A mismatch usually means
// a python installer clobbered the installation the virtualenv symlinks point
// at.
func (e *Environment) CheckVersion() error {
	if e.PythonVersion == nil {
		return nil
	}

	out, err := execCombined(e.BinPython, "--version")
	if err != nil {
		return fmt.Errorf("error running %s --version: %v", e.BinPython, err)
	}
	actual, err := ParsePythonVersion(out)
	if err != nil {
		return fmt.Errorf("error parsing python version: %v", err)
	}

	if versionSatisfies(actual, *e.PythonVersion) {
		return nil
	}

	return fmt.Errorf(
		"your virtual env points to the wrong python version (%s, want %s). "+
			"This is likely because a python installer clobbered the system installation, "+
			"which breaks virtualenv creation. Check this symlink, delete the installation "+
			"of python it is brokenly pointing to, then delete the virtual env itself and "+
			"rerun lore install:\n\n%s\n",
		actual.String(), e.PythonVersion.String(), e.BinPython,
	)
}

// versionSatisfies reports whether actual matches required on every component
// required actually specifies. runtime.txt files that only pin "3.10" accept
// any patch release.
func versionSatisfies(actual, required Version) bool {
	if actual.Major != required.Major {
		return false
	}
	if required.Minor != -1 && actual.Minor != required.Minor {
		return false
	}
	if required.Patch != -1 && actual.Patch != required.Patch {
		return false
	}
	return true
}

// readRuntimeFile reads and parses a runtime.txt, returning nil when the file
// is absent, empty, or unparseable.
func readRuntimeFile(path string) *Version {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	v, ok, err := ParseRuntimeVersion(string(data))
	if err != nil || !ok {
		return nil
	}
	return &v
}

// realpath resolves symlinks, falling back to the cleaned input on error so
// comparisons stay stable for paths that do not exist yet.
func realpath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// hasFlag reports whether the sentinel flag is present in argv.
func hasFlag(argv []string, flag string) bool {
	for _, a := range argv {
		if a == flag {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
