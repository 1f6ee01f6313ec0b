package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [heap|goroutine]",
		Short: "Download a pprof profile from the target service's /debug/pprof endpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfile,
	}
	cmd.Flags().String("out", "", "output file path (defaults to <profile-name>.pprof)")
	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")
	name := args[0]
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = name + ".pprof"
	}

	url := fmt.Sprintf("%s/debug/pprof/%s", target, name)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
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

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return err
	}
	fmt.Printf("%s profile saved to %s\n", name, out)
	return nil
}
