package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Repeatedly fetch and print a store snapshot until interrupted",
		RunE:  runWatch,
	}
	cmd.Flags().Bool("json", false, "print the raw JSON payload instead of a formatted summary")
	cmd.Flags().Duration("interval", 2*time.Second, "polling interval")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")
	asJSON, _ := cmd.Flags().GetBool("json")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx := cmd.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := fetchSnapshot(ctx, target)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		} else if err := printSnapshot(snap, asJSON); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
