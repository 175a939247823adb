package loreboot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot file location relative to the app root.
const (
	snapshotDir  = ".lore"
	snapshotFile = "env.snapshot"
)

// Snapshot caches interpreter probe results between boots. Probing costs three
// subprocess launches (python --version, pip --version, pip freeze); a fresh
// snapshot skips all of them.
type Snapshot struct {
	// PythonVersion is the probed interpreter version string.
	PythonVersion string `msgpack:"python_version"`

	// PipVersion is the probed pip version string.
	PipVersion string `msgpack:"pip_version"`

	// Packages maps lowercased package names to installed versions.
	Packages map[string]string `msgpack:"packages"`

	// RequirementsModTime invalidates the snapshot when requirements.txt
	// changes.
	RequirementsModTime int64 `msgpack:"requirements_mod_time"`

	// PythonModTime invalidates the snapshot when the virtualenv interpreter
	// is replaced.
	PythonModTime int64 `msgpack:"python_mod_time"`
}

// SnapshotPath returns the snapshot location for this app root.
func (e *Environment) SnapshotPath() string {
	return filepath.Join(e.Root, snapshotDir, snapshotFile)
}

// LoadSnapshot reads the cached probe results, returning ok=false when the
// snapshot is absent, unreadable, or stale.
func (e *Environment) LoadSnapshot() (*Snapshot, bool) {
	data, err := os.ReadFile(e.SnapshotPath())
	if err != nil {
		return nil, false
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, false
	}

	if snap.RequirementsModTime != modTime(e.Requirements) {
		return nil, false
	}
	if snap.PythonModTime != modTime(e.BinPython) {
		return nil, false
	}
	return &snap, true
}

// WriteSnapshot probes the virtualenv and persists the results.
func (e *Environment) WriteSnapshot() error {
	if !fileExists(e.BinPython) {
		return fmt.Errorf("no virtualenv interpreter at %s", e.BinPython)
	}

	snap := Snapshot{
		RequirementsModTime: modTime(e.Requirements),
		PythonModTime:       modTime(e.BinPython),
	}

	out, err := execCombined(e.BinPython, "--version")
	if err != nil {
		return fmt.Errorf("error running python --version: %v", err)
	}
	pyVersion, err := ParsePythonVersion(out)
	if err != nil {
		return fmt.Errorf("error parsing python version: %v", err)
	}
	snap.PythonVersion = pyVersion.String()

	out, err = execCombined(e.BinPython, "-m", "pip", "--version")
	if err != nil {
		return fmt.Errorf("error running pip --version: %v", err)
	}
	pipVersion, err := ParsePipVersion(out)
	if err != nil {
		return fmt.Errorf("error parsing pip version: %v", err)
	}
	snap.PipVersion = pipVersion.String()

	snap.Packages, err = e.InstalledPackages()
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.SnapshotPath()), 0755); err != nil {
		return fmt.Errorf("error creating snapshot directory: %v", err)
	}
	if err := os.WriteFile(e.SnapshotPath(), data, 0644); err != nil {
		return fmt.Errorf("error writing snapshot: %v", err)
	}
	return nil
}

// refreshSnapshot discards cached probe results and re-probes. When the
// rewrite fails no snapshot is left behind, so the next boot probes live.
func (e *Environment) refreshSnapshot() {
	_ = os.Remove(e.SnapshotPath())
	_ = e.WriteSnapshot()
}

// InstalledPackagesCached returns the installed package map from the snapshot
// when fresh, probing pip and rewriting the snapshot otherwise.
func (e *Environment) InstalledPackagesCached() (map[string]string, error) {
	if snap, ok := e.LoadSnapshot(); ok {
		return snap.Packages, nil
	}

	installed, err := e.InstalledPackages()
	if err != nil || installed == nil {
		return installed, err
	}

	// Refresh is best effort; the probe result is what matters.
	_ = e.WriteSnapshot()
	return installed, nil
}

// EnvironmentSpec is the human-readable frozen form of an environment,
// written by Freeze for reproducibility.
type EnvironmentSpec struct {
	// Name is the app name the virtualenv was built for.
	Name string `json:"name"`

	// PythonVersion is the interpreter version (e.g., "3.10.5").
	PythonVersion string `json:"python_version,omitempty"`

	// PipPackages lists installed packages in "name==version" format.
	PipPackages []string `json:"pip_packages,omitempty"`
}

var fileURLRegex = regexp.MustCompile(`^(.+) @ file:///.+$`)

// Freeze writes the environment specification to a JSON file. File URLs in
// pip freeze output are cleaned to show only package names.
func (e *Environment) Freeze(filePath string) error {
	spec := EnvironmentSpec{
		Name:        e.App,
		PipPackages: []string{},
	}
	if e.PythonVersion != nil {
		spec.PythonVersion = e.PythonVersion.String()
	}

	lines, err := execLines(e.BinPython, "-m", "pip", "freeze")
	if err != nil {
		return fmt.Errorf("error running pip freeze: %v", err)
	}
	for _, line := range lines {
		if match := fileURLRegex.FindStringSubmatch(line); len(match) > 1 {
			line = match[1]
		}
		if before, _, found := strings.Cut(line, "#"); found {
			line = strings.TrimSpace(before)
		}
		if line != "" {
			spec.PipPackages = append(spec.PipPackages, line)
		}
	}
	sort.Strings(spec.PipPackages)

	jsonData, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling environment spec to JSON: %v", err)
	}
	if err := os.WriteFile(filePath, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing JSON to file: %v", err)
	}
	return nil
}

func modTime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}
