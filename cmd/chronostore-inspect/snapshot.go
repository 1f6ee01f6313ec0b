package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch and print one store snapshot",
		RunE:  runSnapshot,
	}
	cmd.Flags().Bool("json", false, "print the raw JSON payload instead of a formatted summary")
	return cmd
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")
	asJSON, _ := cmd.Flags().GetBool("json")

	snap, err := fetchSnapshot(cmd.Context(), target)
	if err != nil {
		return err
	}
	return printSnapshot(snap, asJSON)
}

// fetchSnapshot retrieves the JSON payload served by examples/basic's
// /debug/chronostore/snapshot handler. The payload is decoded into
// map[string]any, deliberately loose, so the CLI doesn't version-lock to
// any particular Stats field set.
func fetchSnapshot(ctx context.Context, base string) (map[string]any, error) {
	url := base + "/debug/chronostore/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func printSnapshot(data map[string]any, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	fmt.Printf("shards:          %v\n", data["num_shards"])
	fmt.Printf("timeless rows:   %v\n", data["num_timeless_rows"])
	fmt.Printf("temporal rows:   %v\n", data["num_temporal_rows"])
	fmt.Printf("total size:      %.2f MiB\n", toFloat(data["total_size_bytes"])/1_048_576)
	fmt.Printf("generation:      %v\n", data["generation"])
	return nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}
