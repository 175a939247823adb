package loreboot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeInterpreter creates a stat-able interpreter file and stubs the probe
// seams with canned output.
func fakeInterpreter(t *testing.T, e *Environment, packages []string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(e.BinPython), 0755); err != nil {
		t.Fatalf("Failed to create bin dir: %v", err)
	}
	if err := os.WriteFile(e.BinPython, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("Failed to create fake interpreter: %v", err)
	}

	origCombined := execCombined
	execCombined = func(name string, args ...string) (string, error) {
		if len(args) > 0 && args[0] == "--version" {
			return "Python 3.10.5", nil
		}
		return "pip 23.0.1 from /x (python 3.10)", nil
	}
	t.Cleanup(func() { execCombined = origCombined })

	origLines := execLines
	execLines = func(name string, args ...string) ([]string, error) {
		return packages, nil
	}
	t.Cleanup(func() { execLines = origLines })
}

func TestSnapshotRoundtrip(t *testing.T) {
	e := testEnv(t)
	e.Requirements = filepath.Join(e.Root, RequirementsFile)
	fakeInterpreter(t, e, []string{"pandas==1.5.3", "requests==2.31.0"})

	if err := e.WriteSnapshot(); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	snap, ok := e.LoadSnapshot()
	if !ok {
		t.Fatal("Expected a fresh snapshot to load")
	}
	if snap.PythonVersion != "3.10.5" {
		t.Errorf("Expected python version 3.10.5, got %s", snap.PythonVersion)
	}
	if snap.PipVersion != "23.0.1" {
		t.Errorf("Expected pip version 23.0.1, got %s", snap.PipVersion)
	}
	if snap.Packages["pandas"] != "1.5.3" {
		t.Errorf("Expected pandas 1.5.3, got %q", snap.Packages["pandas"])
	}
}

func TestSnapshotStaleOnRequirementsChange(t *testing.T) {
	e := testEnv(t)
	e.Requirements = filepath.Join(e.Root, RequirementsFile)
	fakeInterpreter(t, e, []string{"pandas==1.5.3"})

	if err := e.WriteSnapshot(); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	// Creating requirements.txt moves its mtime from zero
	if err := os.WriteFile(e.Requirements, []byte("pandas==1.5.3\n"), 0644); err != nil {
		t.Fatalf("Failed to write requirements: %v", err)
	}

	if _, ok := e.LoadSnapshot(); ok {
		t.Error("Expected snapshot to be stale after requirements.txt changed")
	}
}

func TestSnapshotStaleOnInterpreterChange(t *testing.T) {
	e := testEnv(t)
	e.Requirements = filepath.Join(e.Root, RequirementsFile)
	fakeInterpreter(t, e, []string{"pandas==1.5.3"})

	if err := e.WriteSnapshot(); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(e.BinPython, future, future); err != nil {
		t.Fatalf("Failed to bump interpreter mtime: %v", err)
	}

	if _, ok := e.LoadSnapshot(); ok {
		t.Error("Expected snapshot to be stale after the interpreter changed")
	}
}

func TestSnapshotMissing(t *testing.T) {
	e := testEnv(t)
	if _, ok := e.LoadSnapshot(); ok {
		t.Error("Expected no snapshot in an empty root")
	}
}

func TestInstalledPackagesCached(t *testing.T) {
	e := testEnv(t)
	e.Requirements = filepath.Join(e.Root, RequirementsFile)
	fakeInterpreter(t, e, []string{"pandas==1.5.3"})

	installed, err := e.InstalledPackagesCached()
	if err != nil {
		t.Fatalf("InstalledPackagesCached failed: %v", err)
	}
	if installed["pandas"] != "1.5.3" {
		t.Errorf("Expected pandas 1.5.3, got %q", installed["pandas"])
	}

	// The probe should have left a snapshot behind; break the seam to prove
	// subsequent reads come from it.
	origLines := execLines
	execLines = func(name string, args ...string) ([]string, error) {
		t.Error("Expected cached read, pip freeze was probed")
		return nil, nil
	}
	t.Cleanup(func() { execLines = origLines })

	installed, err = e.InstalledPackagesCached()
	if err != nil {
		t.Fatalf("Cached read failed: %v", err)
	}
	if installed["pandas"] != "1.5.3" {
		t.Errorf("Expected cached pandas 1.5.3, got %q", installed["pandas"])
	}
}

func TestFreeze(t *testing.T) {
	e := testEnv(t)
	required, _ := ParseVersion("3.10.5")
	e.PythonVersion = &required
	fakeInterpreter(t, e, []string{
		"requests==2.31.0",
		"local-pkg @ file:///home/dev/local-pkg",
		"pandas==1.5.3",
	})

	out := filepath.Join(t.TempDir(), "environment.json")
	if err := e.Freeze(out); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read frozen spec: %v", err)
	}

	var spec EnvironmentSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		t.Fatalf("Failed to parse frozen spec: %v", err)
	}

	if spec.Name != e.App {
		t.Errorf("Expected name %s, got %s", e.App, spec.Name)
	}
	if spec.PythonVersion != "3.10.5" {
		t.Errorf("Expected python version 3.10.5, got %s", spec.PythonVersion)
	}
	want := []string{"local-pkg", "pandas==1.5.3", "requests==2.31.0"}
	if len(spec.PipPackages) != len(want) {
		t.Fatalf("Expected %d packages, got %v", len(want), spec.PipPackages)
	}
	for i, pkg := range want {
		if spec.PipPackages[i] != pkg {
			t.Errorf("Expected package %s at %d, got %s", pkg, i, spec.PipPackages[i])
		}
	}
}
