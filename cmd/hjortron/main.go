package main

import (
	"context"
	"fmt"
	"os"

	"pkt.systems/hjortron"
	"pkt.systems/pslog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := pslog.LoggerFromEnv(pslog.WithEnvWriter(os.Stdout))
	ctx := pslog.ContextWithLogger(context.Background(), logger)

	root := NewRootCommand(hjortron.NewLoader())
	root.SetContext(ctx)
	return root.Execute()
}
