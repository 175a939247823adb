package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorehq/loreboot"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- COMMAND [args...]",
		Short: "Run a command inside the app environment",
		Long: `Ensures the app virtualenv exists and matches runtime.txt and
requirements.txt, relaunching this process inside the environment when
necessary, then replaces it with COMMAND.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := discover()
			if err != nil {
				return err
			}
			if err := env.Validate(os.Args); err != nil {
				return err
			}

			// Launch either continues in-process (already inside the env) or
			// replaces this process with the same loreboot invocation inside
			// it; in the latter case nothing below runs.
			if err := loreboot.Launch(env, os.Args, progressLogger); err != nil {
				return fmt.Errorf("launch %s: %w", env.StyledName(), err)
			}

			if err := env.LoadEnvFile(); err != nil {
				return err
			}
			if err := loreboot.LoadEnvDirectory(); err != nil {
				return err
			}

			if err := env.CheckRequirements(os.Args, progressLogger); err != nil {
				return err
			}

			log.Debug("handing off", "command", args[0], "env", env.Name)
			return loreboot.ExecIn(env, stripSentinels(args))
		},
	}
	return cmd
}

// stripSentinels drops the relaunch guard flags before the final handoff so
// the target command never sees them.
func stripSentinels(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == loreboot.FlagEnvLaunched || a == loreboot.FlagEnvChecked {
			continue
		}
		out = append(out, a)
	}
	return out
}
