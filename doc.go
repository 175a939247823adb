// Package loreboot bootstraps a per-app isolated Python runtime environment
// and relaunches the current process inside it.
//
// Each app keeps an independent virtualenv, so apps can be replicated from
// development to production without manual activation, magic env vars, or
// hidden files that break python for everything else. No knowledge required
// of venv, pyenv, pyvenv, virtualenv, virtualenvwrapper, pipenv, or conda.
//
// # Bootstrap Protocol
//
// The first thing a lore command does when launched is find the correct
// virtualenv with the perfect set of dependencies, and relaunch the same
// command inside it:
//
//  1. Discover computes the app root (LORE_ROOT or an upward search for
//     runtime.txt), the required interpreter version, and the paths of the
//     virtualenv's executables.
//
//  2. Launch checks whether the process already runs inside the target
//     environment (VIRTUAL_ENV resolves to the computed prefix). If it does,
//     the interpreter version is sanity checked and execution continues. If
//     not, the virtualenv is created when missing and the process is replaced
//     with an equivalent invocation inside it via execve.
//
//  3. CheckRequirements verifies every requirements.txt entry against pip
//     freeze, installing and relaunching once when something is unmet.
//
// Sentinel arguments (--env-launched, --env-checked) guard both relaunch
// points so a broken environment fails loudly instead of relaunching forever.
//
// Typical use:
//
//	env, err := loreboot.Discover(os.Args)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := env.Validate(os.Args); err != nil {
//	    log.Fatal(err)
//	}
//	if err := loreboot.Launch(env, os.Args, nil); err != nil {
//	    log.Fatal(err)
//	}
//	// past this point the process is inside the app virtualenv
//	if err := env.CheckRequirements(os.Args, nil); err != nil {
//	    log.Fatal(err)
//	}
//
// # Environment Layout
//
// On Unix the virtualenv lives under the pyenv root when one exists
// ($PYENV_ROOT or ~/.pyenv):
//
//	<pyenv>/versions/<version>/envs/<app>
//
// and under <root>/.python otherwise (always on Windows). Virtualenv names
// are based on the app name, so two apps with the same name share a
// virtualenv by default. The interpreter is probed through a fallback chain:
//
//	python3.10.2 -> python3.10 -> python3 -> python
//
// # Dependency Verification
//
// CheckRequirements parses requirements.txt (VCS requirements are skipped),
// compares against the pip freeze output of the virtualenv interpreter, and
// installs anything unmet. Require appends extra packages to requirements.txt
// at runtime and reboots:
//
//	err := env.Require([]string{"pandas"}, os.Args, nil)
//
// # Probe Snapshot
//
// Interpreter probes (python --version, pip --version, pip freeze) are cached
// in a msgpack snapshot at <root>/.lore/env.snapshot, invalidated when
// requirements.txt or the interpreter binary changes. Freeze writes a
// human-readable JSON environment spec for reproducibility:
//
//	err := env.Freeze("environment.json")
//
// # Configuration Glue
//
// Once launched, <root>/.env is loaded (godotenv), files under $ENV_DIRECTORY
// become environment variables, and named INI configs are read with ${VAR}
// expansion, preferring config/<envname>/<file> over config/<file>:
//
//	db, err := env.DatabaseConfig()
//
// Environment names are color coded for log output: development green, test
// blue, production red.
package loreboot
