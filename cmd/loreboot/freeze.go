package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func freezeCmd() *cobra.Command {
	output := "environment.json"

	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Write the environment specification to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := discover()
			if err != nil {
				return err
			}
			if err := env.Freeze(output); err != nil {
				return err
			}
			log.Info("froze environment", "app", env.App, "file", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", output, "output file")
	return cmd
}
