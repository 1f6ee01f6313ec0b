package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "chronostore-inspect",
		Short:   "Inspect a running chronostore service",
		Long:    `chronostore-inspect fetches diagnostic data from a chronostore-embedding service and prints it as text or JSON, optionally watching it on an interval or downloading pprof profiles.`,
		Version: version,
	}
	rootCmd.PersistentFlags().String("target", "http://localhost:6060", "base URL of the service exposing /debug/chronostore/snapshot")

	rootCmd.AddCommand(
		newSnapshotCommand(),
		newWatchCommand(),
		newGCCommand(),
		newProfileCommand(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "chronostore-inspect:", err)
		os.Exit(1)
	}
}
