package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/hjortron"
	"pkt.systems/prettyx"
)

// NewConfigCommand builds the config command.
func NewConfigCommand(loader *hjortron.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out, err := json.Marshal(cfg)
			if err != nil {
				return err
			}
			return prettyx.PrettyTo(cmd.OutOrStdout(), out, prettyx.DefaultOptions)
		},
	}
}
