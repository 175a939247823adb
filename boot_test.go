package loreboot

import (
	"path/filepath"
	"strings"
	"testing"
)

func testEnv(t *testing.T) *Environment {
	t.Helper()
	prefix := filepath.Join(t.TempDir(), ".python")
	return &Environment{
		Root:      t.TempDir(),
		App:       "myapp",
		Name:      Development,
		Prefix:    prefix,
		BinPython: filepath.Join(prefix, "bin", "python"),
		BinLore:   filepath.Join(prefix, "bin", "lore"),
	}
}

func TestRebootArgsRewritesPython(t *testing.T) {
	e := testEnv(t)

	args := rebootArgs(e, []string{"python", "manage.py", "serve"}, FlagEnvLaunched)
	if args[0] != e.BinPython {
		t.Errorf("Expected argv[0] %s, got %s", e.BinPython, args[0])
	}
	if args[len(args)-1] != FlagEnvLaunched {
		t.Errorf("Expected sentinel appended, got %v", args)
	}
	if args[1] != "manage.py" || args[2] != "serve" {
		t.Errorf("Expected remaining args preserved, got %v", args)
	}
}

func TestRebootArgsRewritesLore(t *testing.T) {
	e := testEnv(t)

	args := rebootArgs(e, []string{"/usr/local/bin/lore", "console"}, FlagEnvChecked)
	if args[0] != e.BinLore {
		t.Errorf("Expected argv[0] %s, got %s", e.BinLore, args[0])
	}
}

func TestJupyterKernelPath(t *testing.T) {
	e := testEnv(t)

	t.Setenv("JUPYTER_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("APPDATA", "")

	orig := osUserHome
	osUserHome = func() (string, error) { return "/home/dev", nil }
	t.Cleanup(func() { osUserHome = orig })

	got := jupyterKernelPath(e)
	if !strings.HasSuffix(got, filepath.Join("kernels", e.App)) {
		t.Errorf("Expected a per-app kernel directory, got %s", got)
	}

	t.Setenv("JUPYTER_DATA_DIR", "/data/jupyter")
	got = jupyterKernelPath(e)
	if want := filepath.Join("/data/jupyter", "kernels", e.App); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestRebootArgsSelfReexec(t *testing.T) {
	e := testEnv(t)

	orig := osExecutable
	osExecutable = func() (string, error) { return "/opt/bin/loreboot", nil }
	t.Cleanup(func() { osExecutable = orig })

	args := rebootArgs(e, []string{"loreboot", "run", "--", "pytest"}, FlagEnvLaunched)
	if args[0] != "/opt/bin/loreboot" {
		t.Errorf("Expected loreboot to re-exec itself, got %s", args[0])
	}
	if args[len(args)-1] != FlagEnvLaunched {
		t.Errorf("Expected sentinel appended, got %v", args)
	}
}

func TestRebootArgsLeavesOtherCommands(t *testing.T) {
	e := testEnv(t)

	args := rebootArgs(e, []string{"/usr/bin/gunicorn", "app:server"})
	if args[0] != "/usr/bin/gunicorn" {
		t.Errorf("Expected argv[0] untouched, got %s", args[0])
	}
}

func TestRebootArgsEmptyArgv(t *testing.T) {
	e := testEnv(t)

	args := rebootArgs(e, []string{""})
	if args[0] != e.BinPython {
		t.Errorf("Expected empty argv[0] replaced with %s, got %s", e.BinPython, args[0])
	}

	args = rebootArgs(e, nil)
	if len(args) != 1 || args[0] != e.BinPython {
		t.Errorf("Expected bare interpreter for nil argv, got %v", args)
	}
}

func TestActivatedEnviron(t *testing.T) {
	e := testEnv(t)

	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv(EnvVirtualEnv, "/somewhere/else")
	t.Setenv("__PYVENV_LAUNCHER__", "/usr/bin/python3")

	environ := activatedEnviron(e)

	binDir := filepath.Dir(e.BinPython)
	var gotPath, gotVenv string
	for _, kv := range environ {
		key, value, _ := strings.Cut(kv, "=")
		switch key {
		case "PATH":
			gotPath = value
		case EnvVirtualEnv:
			gotVenv = value
		case "__PYVENV_LAUNCHER__":
			t.Error("Expected __PYVENV_LAUNCHER__ to be removed")
		}
	}

	if !strings.HasPrefix(gotPath, binDir+string(filepath.ListSeparator)) {
		t.Errorf("Expected PATH to start with %s, got %s", binDir, gotPath)
	}
	if !strings.HasSuffix(gotPath, "/usr/bin:/bin") {
		t.Errorf("Expected original PATH preserved, got %s", gotPath)
	}
	if gotVenv != e.Prefix {
		t.Errorf("Expected VIRTUAL_ENV %s, got %s", e.Prefix, gotVenv)
	}
}

func TestHasFlag(t *testing.T) {
	argv := []string{"loreboot", "run", "--", "pytest", FlagEnvLaunched}
	if !hasFlag(argv, FlagEnvLaunched) {
		t.Error("Expected flag to be found")
	}
	if hasFlag(argv, FlagEnvChecked) {
		t.Error("Expected flag to be absent")
	}
}

func TestLaunchAlreadyLaunchedChecksVersionAndChdirs(t *testing.T) {
	e := testEnv(t)
	required, _ := ParseVersion("3.10")
	e.PythonVersion = &required

	// Launch chdirs into the app root; t.Chdir restores the original
	// working directory afterwards.
	t.Chdir(t.TempDir())
	t.Setenv(EnvVirtualEnv, e.Prefix)

	orig := execCombined
	execCombined = func(name string, args ...string) (string, error) {
		return "Python 3.10.5", nil
	}
	t.Cleanup(func() { execCombined = orig })

	if err := Launch(e, []string{"loreboot", "run"}, nil); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	cwd, err := osGetwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if realpath(cwd) != realpath(e.Root) {
		t.Errorf("Expected cwd %s, got %s", e.Root, cwd)
	}
}

func TestLaunchMissingVenvAfterRelaunchFails(t *testing.T) {
	e := testEnv(t)

	// BinLore does not exist and the sentinel says we already relaunched
	// once, so Launch must fail instead of looping.
	err := Launch(e, []string{"loreboot", "run", FlagEnvLaunched}, nil)
	if err == nil {
		t.Fatal("Expected error for missing virtualenv after relaunch")
	}
	if !strings.Contains(err.Error(), "virtualenv is missing") {
		t.Errorf("Expected missing virtualenv message, got %v", err)
	}
}
