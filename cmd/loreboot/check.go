package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorehq/loreboot"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the app environment without relaunching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := discover()
			if err != nil {
				return err
			}
			if err := env.Validate(os.Args); err != nil {
				return err
			}

			if env.Launched() {
				if err := env.CheckVersion(); err != nil {
					return err
				}
				log.Info("running inside the app virtualenv", "prefix", env.Prefix)
			} else {
				log.Info("not running inside the app virtualenv", "prefix", env.Prefix)
			}

			installed, err := env.InstalledPackagesCached()
			if err != nil {
				return err
			}
			missing, err := loreboot.MissingRequirements(env.Requirements, installed)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				for _, req := range missing {
					log.Warn("unmet requirement", "requirement", req.Raw)
				}
				return fmt.Errorf("%d unmet requirements; run `loreboot install`", len(missing))
			}

			log.Info("all requirements satisfied", "env", env.StyledName())
			return nil
		},
	}
}
