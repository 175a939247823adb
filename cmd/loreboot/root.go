package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorehq/loreboot"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loreboot",
		Short: "Bootstrap a per-app isolated Python runtime environment",
		Long: `loreboot finds the app root and its runtime.txt, locates or creates the
matching virtualenv, verifies requirements.txt, and relaunches commands
inside the environment. There is no manual activation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var verbose bool
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Relaunch sentinels appended by the bootstrap protocol. Registered so
	// cobra accepts them; detection reads os.Args directly.
	cmd.PersistentFlags().Bool("env-launched", false, "")
	cmd.PersistentFlags().Bool("env-checked", false, "")
	_ = cmd.PersistentFlags().MarkHidden("env-launched")
	_ = cmd.PersistentFlags().MarkHidden("env-checked")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	}

	cmd.AddCommand(
		runCmd(),
		installCmd(),
		envCmd(),
		checkCmd(),
		freezeCmd(),
	)

	return cmd
}

// discover loads the environment and runs the shared validation every
// subcommand needs.
func discover() (*loreboot.Environment, error) {
	env, err := loreboot.Discover(os.Args)
	if err != nil {
		return nil, fmt.Errorf("discover environment: %w", err)
	}

	log.Debug("discovered environment",
		"root", env.Root,
		"app", env.App,
		"name", env.Name,
		"prefix", env.Prefix,
	)
	return env, nil
}

// progressLogger reports long-running operation progress at debug level.
func progressLogger(message string, current, total int64) {
	log.Debug(message, "current", current, "total", total)
}
