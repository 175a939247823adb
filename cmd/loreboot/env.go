package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the computed environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := discover()
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return fmt.Errorf("encode environment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s on %s\n%s\n", env.StyledName(), env.Host, out)
			return nil
		},
	}
}
