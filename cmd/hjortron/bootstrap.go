package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/hjortron"
	"pkt.systems/pslog"
)

// NewBootstrapCommand builds the subcommand that writes a starter
// config file.
func NewBootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Write the default Hjortron config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := pslog.Ctx(cmd.Context()).With("component", "bootstrap")
			path, err := hjortron.Bootstrap(hjortron.DefaultConfig(), log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
