package loreboot

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// Test seam for the pip freeze probe.
var execLines = runReadStdout

var (
	vcsRequirementRegex = regexp.MustCompile(`^(-e )?(git|svn|hg|bzr)`)
	requirementOpRegex  = regexp.MustCompile(`(==|>=|<=|!=|~=|>|<)`)
)

// Requirement is a single parsed requirements.txt line.
type Requirement struct {
	// Name is the package name, lowercased for comparison.
	Name string

	// Op is the version comparator ("==", ">=", ...), empty when the line
	// only names a package.
	Op string

	// Version is the pinned version string, empty when Op is empty.
	Version string

	// Raw is the original line.
	Raw string
}

// ParseRequirement parses a single requirements.txt line.
// Returns ok=false for blank lines, comments, and VCS requirements, which are
// installed by pip but cannot be verified against pip freeze output.
func ParseRequirement(line string) (Requirement, bool) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "#"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" || vcsRequirementRegex.MatchString(line) {
		return Requirement{}, false
	}

	req := Requirement{Raw: line}
	loc := requirementOpRegex.FindStringIndex(line)
	if loc == nil {
		req.Name = strings.ToLower(strings.TrimSpace(line))
		return req, true
	}

	req.Name = strings.ToLower(strings.TrimSpace(line[:loc[0]]))
	req.Op = line[loc[0]:loc[1]]
	req.Version = strings.TrimSpace(line[loc[1]:])
	return req, true
}

// SatisfiedBy reports whether an installed version satisfies the requirement.
// Versions that do not parse are accepted on name match alone; pip already
// resolved them once.
func (r Requirement) SatisfiedBy(installed string) bool {
	if r.Op == "" {
		return true
	}

	want, errWant := ParseVersion(r.Version)
	have, errHave := ParseVersion(installed)
	if errWant != nil || errHave != nil {
		return r.Op != "==" || r.Version == installed
	}

	cmp := have.Compare(want)
	switch r.Op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "~=":
		// Compatible release: at least the pinned version, same minor series.
		return cmp >= 0 && have.Major == want.Major && have.Minor == want.Minor
	}
	return true
}

// InstalledPackages returns the packages installed in the app virtualenv as a
// map of lowercased name to version, from "python -m pip freeze". A nil map
// with nil error means the virtualenv interpreter does not exist yet.
func (e *Environment) InstalledPackages() (map[string]string, error) {
	if !fileExists(e.BinPython) {
		return nil, nil
	}

	lines, err := execLines(e.BinPython, "-m", "pip", "freeze")
	if err != nil {
		return nil, fmt.Errorf("error running pip freeze: %v", err)
	}

	installed := make(map[string]string, len(lines))
	for _, line := range lines {
		// "name @ file:///..." lines carry no version
		if name, _, found := strings.Cut(line, " @ "); found {
			installed[strings.ToLower(strings.TrimSpace(name))] = ""
			continue
		}
		name, version, _ := strings.Cut(line, "==")
		installed[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(version)
	}
	return installed, nil
}

// MissingRequirements parses a requirements file and returns the requirement
// lines not satisfied by the installed map.
func MissingRequirements(path string, installed map[string]string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s is missing. Please check it in", path)
	}
	defer f.Close()

	var missing []Requirement
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		req, ok := ParseRequirement(scanner.Text())
		if !ok {
			continue
		}
		version, found := installed[req.Name]
		if !found || !req.SatisfiedBy(version) {
			missing = append(missing, req)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %v", path, err)
	}
	return missing, nil
}

// CheckRequirements verifies that every package listed in requirements.txt is
// installed in the virtualenv. Unmet requirements trigger an install followed
// by a relaunch with the checked sentinel; if the sentinel is already present
// the install must have failed and an error is returned instead.
func (e *Environment) CheckRequirements(argv []string, progress ProgressCallback) error {
	installed, err := e.InstalledPackagesCached()
	if err != nil {
		return err
	}

	missing, err := MissingRequirements(e.Requirements, installed)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	var names []string
	for _, req := range missing {
		names = append(names, req.Raw)
	}
	if hasFlag(argv, FlagEnvChecked) {
		return fmt.Errorf(
			"missing requirements:\n  %s\nRequirement installation failure, please check for errors in:\n $ lore install",
			strings.Join(names, "\n  "),
		)
	}

	if err := e.PipInstallRequirements(e.Requirements, progress); err != nil {
		return err
	}
	// The snapshot written by the probe above predates the install; the
	// relaunched process must not read the old package set back from it.
	e.refreshSnapshot()
	return execReboot(e, argv, FlagEnvChecked)
}

// Require ensures that the named pypi packages are installed into the app's
// environment. Missing packages are appended to requirements.txt, installed,
// and the process is relaunched with the checked sentinel.
func (e *Environment) Require(packages []string, argv []string, progress ProgressCallback) error {
	installed, err := e.InstalledPackages()
	if err != nil {
		return err
	}
	if installed == nil {
		return nil
	}

	var missing []string
	for _, pkg := range packages {
		req, ok := ParseRequirement(pkg)
		if !ok {
			continue
		}
		if _, found := installed[req.Name]; !found {
			missing = append(missing, pkg)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(e.Requirements, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening %s: %v", e.Requirements, err)
	}
	if _, err := f.WriteString("\n" + strings.Join(missing, "\n") + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("error appending to %s: %v", e.Requirements, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing %s: %v", e.Requirements, err)
	}

	// Everything else in requirements.txt is already installed, so only the
	// new packages go through pip.
	if err := e.PipInstallPackages(missing, progress); err != nil {
		return err
	}
	e.refreshSnapshot()
	return execReboot(e, argv, FlagEnvChecked)
}

// PipInstallPackages installs one or more packages into the virtualenv.
// Returns an error if pip fails, including stderr output for debugging.
func (e *Environment) PipInstallPackages(packages []string, progress ProgressCallback) error {
	args := append([]string{"-m", "pip", "install", "--no-warn-script-location"}, packages...)
	return e.runPipInstall(args, "Installing pip packages...", progress)
}

// PipInstallRequirements installs packages from a requirements.txt file.
func (e *Environment) PipInstallRequirements(requirementsPath string, progress ProgressCallback) error {
	args := []string{"-m", "pip", "install", "--no-warn-script-location", "-r", requirementsPath}
	return e.runPipInstall(args, "Installing pip requirements...", progress)
}

func (e *Environment) runPipInstall(args []string, description string, progress ProgressCallback) error {
	installCmd := exec.Command(e.BinPython, args...)

	var stderr strings.Builder
	installCmd.Stderr = &stderr

	stdout, err := installCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %v", err)
	}
	defer stdout.Close()

	if err := installCmd.Start(); err != nil {
		return fmt.Errorf("error starting pip install: %v", err)
	}

	scanner := bufio.NewScanner(stdout)
	lineCount := int64(0)
	for scanner.Scan() {
		lineCount++
		if progress != nil {
			progress(description, lineCount, -1)
		}
	}

	if err := installCmd.Wait(); err != nil {
		return fmt.Errorf("error installing packages: %v, stderr: %s", err, stderr.String())
	}

	if progress != nil {
		progress("Pip packages installed successfully", 100, 100)
	}
	return nil
}
