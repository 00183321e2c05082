package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/hjortron"
)

// NewWatchCommand builds the watch command.
func NewWatchCommand(loader *hjortron.Loader) *cobra.Command {
	var (
		password       string
		requestControl bool
	)

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Mirror a served Hjortron session (Ctrl-] detaches)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closer, err := openSessionLogger(cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			return hjortron.Watch(cmd.Context(), hjortron.WatchOptions{
				URL:            args[0],
				Password:       password,
				RequestControl: requestControl,
				Logger:         logger.With("component", "watch"),
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "viewer password")
	cmd.Flags().BoolVar(&requestControl, "control", false, "request control of the session")
	return cmd
}
