package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

func newGCCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gc-trigger",
		Short: "Trigger one GC pass on the target service",
		RunE:  runGCTrigger,
	}
}

func runGCTrigger(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, target+"/gc", nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	fmt.Print(string(body))
	return nil
}
