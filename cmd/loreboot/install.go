package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorehq/loreboot"
)

func installCmd() *cobra.Command {
	var clear, upgrade bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Create the app virtualenv and install requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := discover()
			if err != nil {
				return err
			}
			if err := env.Validate(os.Args); err != nil {
				return err
			}

			if clear || upgrade {
				opts := loreboot.VenvOptions{Prompt: env.App, Clear: clear, Upgrade: upgrade}
				if err := loreboot.CreateVenv(env, opts, progressLogger); err != nil {
					return err
				}
				if err := env.PipInstallRequirements(env.Requirements, progressLogger); err != nil {
					return err
				}
			} else if err := loreboot.Install(env, progressLogger); err != nil {
				return err
			}

			if env.IsNew {
				log.Info("created virtualenv", "app", env.App, "prefix", env.Prefix)
			} else {
				log.Info("virtualenv up to date", "app", env.App, "prefix", env.Prefix)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "recreate the virtualenv from scratch")
	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "upgrade the virtualenv to the current python")

	return cmd
}
