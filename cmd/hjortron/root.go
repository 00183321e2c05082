package main

import (
	"fmt"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"pkt.systems/hjortron"
	"pkt.systems/pslog"
)

// NewRootCommand wires config, flags, and the interactive session into
// the root command.
func NewRootCommand(loader *hjortron.Loader) *cobra.Command {
	var (
		configFile   string
		sessionID    string
		shellPath    string
		termName     string
		listenAddr   string
		viewPassword string
		cols         int
		rows         int
		scrollback   int
		bufferLines  int
		allowControl bool
		showQR       bool
	)

	v := loader.Viper()
	v.SetDefault("terminal.term", hjortron.DefaultTerminalTerm)
	v.SetDefault("terminal.scrollback_lines", hjortron.DefaultScrollbackLines)
	v.SetDefault("view.buffer_lines", hjortron.DefaultBufferLines)
	v.SetDefault("log_file", hjortron.DefaultLogPath())

	cmd := &cobra.Command{
		Use:   "hjortron",
		Short: "Hjortron terminal with a shareable live view",
		PersistentPreRun: func(*cobra.Command, []string) {
			if configFile == "" {
				return
			}
			loader.SetConfigFile(configFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, closer, err := openSessionLogger(cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()
			logger = logger.With("component", "interactive")
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			// Explicit flags win over the config file. Size flags
			// left untouched resolve to zero and the session sizes
			// itself from the tty.
			flags := cmd.Flags()
			pick := func(name, flagged, configured string) string {
				if flags.Changed(name) {
					return flagged
				}
				return configured
			}
			pickInt := func(name string, flagged, configured int) int {
				if flags.Changed(name) {
					return flagged
				}
				return configured
			}

			listenValue := pick("listen", listenAddr, cfg.View.Listen)
			var onListen func(string)
			if listenValue != "" {
				out := cmd.OutOrStdout()
				onListen = func(url string) {
					fmt.Fprintf(out, "watch: %s\r\n", url)
					if showQR {
						qrterminal.GenerateHalfBlock(url, qrterminal.L, out)
					}
				}
			}

			return hjortron.Interactive(ctx, hjortron.InteractiveOptions{
				SessionID:       sessionID,
				Cols:            pickInt("cols", cols, 0),
				Rows:            pickInt("rows", rows, 0),
				Shell:           pick("shell", shellPath, cfg.Terminal.Shell),
				Term:            pick("term", termName, cfg.Terminal.Term),
				WorkingDir:      cfg.Terminal.WorkingDir,
				Env:             cfg.Terminal.Env,
				ScrollbackLines: pickInt("scrollback", scrollback, cfg.Terminal.ScrollbackLines),
				Listen:          listenValue,
				ViewPassword:    pick("view-password", viewPassword, cfg.View.Password),
				AllowControl:    allowControl,
				BufferLines:     pickInt("buffer-lines", bufferLines, cfg.View.BufferLines),
				Logger:          logger,
				OnListen:        onListen,
			})
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the config file")
	flags := cmd.Flags()
	flags.StringVar(&sessionID, "session", hjortron.DefaultSessionID, "session id")
	flags.IntVar(&cols, "cols", hjortron.DefaultTerminalCols, "initial columns")
	flags.IntVar(&rows, "rows", hjortron.DefaultTerminalRows, "initial rows")
	flags.StringVar(&shellPath, "shell", "", "override login shell path")
	flags.StringVar(&termName, "term", hjortron.DefaultTerminalTerm, "TERM for the PTY session")
	flags.IntVar(&scrollback, "scrollback", hjortron.DefaultScrollbackLines, "scrollback line cap")
	flags.StringVarP(&listenAddr, "listen", "l", "", "serve viewers on this address (host:port)")
	flags.StringVar(&viewPassword, "view-password", "", "password viewers must present")
	flags.BoolVar(&allowControl, "allow-control", false, "let a viewer type into the session")
	flags.IntVar(&bufferLines, "buffer-lines", hjortron.DefaultBufferLines, "max lines buffered per lagging viewer")
	flags.BoolVar(&showQR, "qr", true, "print a QR code of the watch URL")

	cmd.AddCommand(NewWatchCommand(loader), NewConfigCommand(loader), NewBootstrapCommand())
	return cmd
}
